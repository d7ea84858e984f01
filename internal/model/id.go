package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a snowflake id that crosses JSON boundaries. It marshals as a string,
// because snowflakes exceed the 53-bit integer precision of JavaScript clients,
// and unmarshals from either a string or a number.
type ID int64

func (i ID) Int64() int64 {
	return int64(i)
}

func (i ID) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func (i ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = 0
		return nil
	}
	if len(b) == 0 {
		return fmt.Errorf("id empty")
	}

	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*i = ID(n)
	return nil
}

// IDPtr converts an optional ID into an optional int64.
func IDPtr(i *ID) *int64 {
	if i == nil {
		return nil
	}
	v := int64(*i)
	return &v
}
