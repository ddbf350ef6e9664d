package domain

import "time"

// Clock é a fonte de tempo. Testes injetam relógios falsos.
type Clock func() time.Time

// Now trata um Clock nil como time.Now.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
