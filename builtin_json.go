// builtin_json.go — the json namespace.
//
// Conversion goes through an ordered decode so that object key order in
// the source text survives a parse/stringify round trip.
package buddyscript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

func registerJSONBuiltins(r *Registry) {
	r.RegisterNamespace("json", []NamespaceEntry{
		{Name: "parse", Params: []string{"text"}, Impl: jsonParse},
		{Name: "stringify", Params: []string{"value", "indent"}, Impl: jsonStringify},
	})
}

func jsonParse(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	text, err := c.StringArg(0, "text")
	if err != nil {
		return Value{}, err
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	v, derr := decodeJSONValue(dec)
	if derr != nil {
		return Value{}, c.Errf("json.parse: %s", derr)
	}
	return v, nil
}

// decodeJSONValue walks the token stream so objects keep source order,
// which a plain map[string]any decode would shuffle.
func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				el, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, el)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return Value{}, err
			}
			return ArrayValue(elems), nil
		case '{':
			obj := NewMapObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is not a string")
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return Value{}, err
			}
			return ObjectValue(obj), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func jsonStringify(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 2); err != nil {
		return Value{}, err
	}
	indent := ""
	if len(c.Args) == 2 {
		n, err := c.IntArg(1, "indent")
		if err != nil {
			return Value{}, err
		}
		indent = strings.Repeat(" ", n)
	}
	var b bytes.Buffer
	if err := encodeJSONValue(&b, c.Arg(0), indent, ""); err != nil {
		return Value{}, c.Errf("json.stringify: %s", err)
	}
	return StringValue(b.String()), nil
}

func encodeJSONValue(b *bytes.Buffer, v Value, indent, prefix string) error {
	switch v.Tag {
	case TagNull:
		b.WriteString("null")
	case TagBool, TagNumber:
		b.WriteString(v.Display())
	case TagString:
		data, err := json.Marshal(v.Str())
		if err != nil {
			return err
		}
		b.Write(data)
	case TagArray:
		elems := v.Array().Elems
		if len(elems) == 0 {
			b.WriteString("[]")
			return nil
		}
		inner := prefix + indent
		b.WriteByte('[')
		for i, el := range elems {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNewlineIndent(b, indent, inner)
			if err := encodeJSONValue(b, el, indent, inner); err != nil {
				return err
			}
		}
		writeNewlineIndent(b, indent, prefix)
		b.WriteByte(']')
	case TagObject:
		m := v.Object()
		if len(m.Keys) == 0 {
			b.WriteString("{}")
			return nil
		}
		inner := prefix + indent
		b.WriteByte('{')
		for i, k := range m.Keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNewlineIndent(b, indent, inner)
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(key)
			b.WriteByte(':')
			if indent != "" {
				b.WriteByte(' ')
			}
			if err := encodeJSONValue(b, m.Entries[k], indent, inner); err != nil {
				return err
			}
		}
		writeNewlineIndent(b, indent, prefix)
		b.WriteByte('}')
	default:
		return fmt.Errorf("cannot serialize %s", v.TypeName())
	}
	return nil
}

func writeNewlineIndent(b *bytes.Buffer, indent, prefix string) {
	if indent != "" {
		b.WriteByte('\n')
		b.WriteString(prefix)
	}
}
