package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork casa (errors.Is) com qualquer *NetworkFailure.
	ErrNetwork = errors.New("network failure")
	// ErrNoSlot indica que não houve vaga para a chamada ao upstream a tempo.
	ErrNoSlot = errors.New("no upstream slot available")
	// ErrDecode indica corpo 2xx que não é JSON válido.
	ErrDecode = errors.New("invalid json body")
)

// NetworkFailure é a falha de uma chamada ao upstream: status não-2xx, timeout
// ou erro de transporte. Nunca é cacheada.
type NetworkFailure struct {
	URL     string
	Status  int // 0 quando não houve resposta
	Timeout bool
	Err     error
}

func (e *NetworkFailure) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("network failure: GET %s: timeout", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("network failure: GET %s: status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("network failure: GET %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("network failure: GET %s", e.URL)
	}
}

func (e *NetworkFailure) Unwrap() error { return e.Err }

func (e *NetworkFailure) Is(target error) bool { return target == ErrNetwork }
