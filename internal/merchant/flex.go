package merchant

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flex is an identifier the API sends either as a JSON string or as a
// number (company numbers, NSUs, payment ids). It always decodes to its
// decimal text.
type Flex string

func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex: %s is neither string nor number", b)
	}
	*f = Flex(n.String())
	return nil
}

// Value is the column value: NULL when the API omitted the field.
func (f Flex) Value() any {
	if f == "" {
		return nil
	}
	return string(f)
}

func (f Flex) String() string { return string(f) }
