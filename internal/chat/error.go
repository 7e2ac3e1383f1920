package chat

import (
	"errors"
	"net/http"

	"github.com/googollee/go-comet/output"
)

func httpError(code int) error {
	return output.HTTPErr(errors.New(http.StatusText(code)), code)
}
