package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// output renders a command result as text, indented JSON or one gjson
// field of the JSON.
type output struct {
	json  bool
	field string
	w     io.Writer
}

func (o output) emit(v any, human func(w io.Writer)) error {
	switch {
	case o.field != "":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		res := gjson.GetBytes(data, o.field)
		if !res.Exists() {
			return fmt.Errorf("%w: %q", errNoField, o.field)
		}
		_, err = fmt.Fprintln(o.w, res.String())
		return err
	case o.json:
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		human(o.w)
		return nil
	}
}

var errNoField = errors.New("field not present in output")

// usageError reports wrong arguments; main prints the command's usage.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{fmt.Sprintf(format, args...)}
}

// describe shortens gRPC errors to their code and message.
func describe(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	if st.Code() == codes.Unavailable {
		return "daemon unavailable: " + st.Message()
	}
	return fmt.Sprintf("%s: %s", st.Code(), st.Message())
}
