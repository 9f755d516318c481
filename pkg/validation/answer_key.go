package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

const (
	// MinQuestions and MaxQuestions bound the answer key sizes the
	// detector grid can plausibly produce.
	MinQuestions = 1
	MaxQuestions = 300
)

// ParseAnswerKey validates a raw request answer key and converts it to the
// typed form used by grading. Keys must be positive integers and values
// must be known option labels.
func ParseAnswerKey(raw map[string]string) (models.AnswerKey, *apperrors.AppError) {
	if len(raw) == 0 {
		return nil, apperrors.NewInvalidAnswerKeyError("answer key is empty", nil)
	}
	if len(raw) > MaxQuestions {
		return nil, apperrors.NewInvalidAnswerKeyError(
			fmt.Sprintf("answer key has %d entries, maximum is %d", len(raw), MaxQuestions), nil)
	}

	key := make(models.AnswerKey, len(raw))
	for k, v := range raw {
		num, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || num < MinQuestions {
			return nil, apperrors.NewInvalidAnswerKeyError(
				fmt.Sprintf("invalid question number %q", k), nil)
		}
		option := models.Option(strings.ToUpper(strings.TrimSpace(v)))
		if !IsKnownOption(option) {
			return nil, apperrors.NewInvalidAnswerKeyError(
				fmt.Sprintf("question %d has invalid option %q, expected one of %s",
					num, v, strings.Join(models.OptionLabels, ", ")), nil)
		}
		if _, dup := key[num]; dup {
			return nil, apperrors.NewInvalidAnswerKeyError(
				fmt.Sprintf("duplicate question number %d", num), nil)
		}
		key[num] = option
	}
	return key, nil
}

// IsKnownOption reports whether the label is one the detector can emit.
func IsKnownOption(option models.Option) bool {
	for _, l := range models.OptionLabels {
		if option == l {
			return true
		}
	}
	return false
}

// SortedQuestions returns the key's question numbers in ascending order.
func SortedQuestions(key models.AnswerKey) []int {
	nums := make([]int, 0, len(key))
	for n := range key {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
