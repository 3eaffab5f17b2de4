package qrmail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrymomot/qrmail/pkg/batch"
)

// Reply is the JSON object reported for one invocation.
//
// A single-recipient document is answered with {success, message}. A batch is
// answered with the aggregate counts and one result per recipient; message is
// added only when the batch failed as a whole.
type Reply struct {
	Success bool
	Batch   bool
	Message string
	Result  batch.Result

	// Err is the top-level failure, if any. It is not serialized.
	Err error
}

// Failure builds the reply for an invocation that failed before or outside delivery.
func Failure(err error, isBatch bool) Reply {
	return Reply{
		Batch:   isBatch,
		Message: fmt.Sprintf("오류 발생: %v", err),
		Result:  batch.Aggregate(nil),
		Err:     err,
	}
}

type singleReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type batchReply struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []batch.Outcome `json:"results"`
}

// MarshalJSON implements json.Marshaler.
func (r Reply) MarshalJSON() ([]byte, error) {
	if !r.Batch {
		return marshal(singleReply{Success: r.Success, Message: r.Message})
	}

	results := r.Result.Results
	if results == nil {
		results = []batch.Outcome{}
	}
	return marshal(batchReply{
		Success:   r.Success,
		Message:   r.Message,
		Total:     r.Result.Total,
		Succeeded: r.Result.Succeeded,
		Failed:    r.Result.Failed,
		Results:   results,
	})
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteReply writes the reply as one line of JSON, leaving non-ASCII text and markup unescaped.
func WriteReply(w io.Writer, r Reply) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
