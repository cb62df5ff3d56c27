package session

import (
	"encoding/json"

	"github.com/coderoj/judge/internal/judge"
)

func unmarshalUpdate(line []byte, u *judge.Update) error {
	return json.Unmarshal(line, u)
}
