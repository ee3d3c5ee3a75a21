package auth

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// json64 decodes an id written either as a JSON number or a numeric string.
type json64 int64

func (n *json64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*n = json64(v)
	return nil
}

func (n json64) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(n))
}
