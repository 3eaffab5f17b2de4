package batch

import (
	"fmt"
)

// Outcome is the result of one recipient. It is created once and never changed.
type Outcome struct {
	Success bool   `json:"success"`
	To      string `json:"email"`
	Detail  string `json:"message"`
	Err     error  `json:"-"`
}

// Result summarizes a batch.
// Total == Succeeded + Failed == len(Results), and Success is true iff Failed == 0.
type Result struct {
	Success   bool      `json:"success"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Results   []Outcome `json:"results"`
}

// Aggregate folds outcomes into a Result. An empty input is a successful empty batch.
func Aggregate(outcomes []Outcome) Result {
	res := Result{
		Total:   len(outcomes),
		Results: make([]Outcome, len(outcomes)),
	}
	copy(res.Results, outcomes)

	for _, o := range outcomes {
		if o.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	res.Success = res.Failed == 0
	return res
}

func sent(to string) Outcome {
	return Outcome{
		Success: true,
		To:      to,
		Detail:  fmt.Sprintf("이메일이 성공적으로 전송되었습니다: %s", to),
	}
}

func failed(to string, err error) Outcome {
	return Outcome{
		To:     to,
		Detail: fmt.Sprintf("이메일 전송 실패: %v", err),
		Err:    err,
	}
}

func unreachable(to string, err error) Outcome {
	return Outcome{
		To:     to,
		Detail: fmt.Sprintf("SMTP 연결 실패: %v", err),
		Err:    err,
	}
}
