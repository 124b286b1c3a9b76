package eip712

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TypedData eth_signTypedData_v4 请求
type TypedData struct {
	Types       Types
	PrimaryType string
	Domain      Domain
	Message     Message
}

type typedDataJSON struct {
	Types       Types          `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Domain      map[string]any `json:"domain"`
	Message     map[string]any `json:"message"`
}

// ParseOption ParseTypedData 选项
type ParseOption func(*parseOptions)

type parseOptions struct {
	defaultDomain *Domain
}

// WithDefaultDomain 请求未携带 domain 时使用 d
func WithDefaultDomain(d Domain) ParseOption {
	return func(o *parseOptions) { o.defaultDomain = &d }
}

// ParseTypedData 解析 JSON 请求, 并按 schema 将消息转换为类型化值
// 整数可为 JSON 数字、十进制字符串或 0x hex, bytes 为 0x hex
func ParseTypedData(data []byte, opts ...ParseOption) (*TypedData, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw typedDataJSON
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("eip712: decode typed data: %w", err)
	}

	types := make(Types, len(raw.Types))
	for name, fields := range raw.Types {
		if name == DomainTypeName {
			if !sameFields(fields, DomainFields()) {
				return nil, encodingErr(ErrInvalidSchema, DomainTypeName,
					"only %s is supported", DomainType)
			}
			continue
		}
		types[name] = fields
	}
	if err := types.Validate(); err != nil {
		return nil, err
	}

	if raw.PrimaryType == "" {
		return nil, encodingErr(ErrInvalidSchema, "primaryType", "primary type is empty")
	}
	if _, ok := types[raw.PrimaryType]; !ok {
		return nil, encodingErr(ErrUnknownType, raw.PrimaryType, "primary type is not declared")
	}

	var domain Domain
	if raw.Domain == nil && o.defaultDomain != nil {
		domain = *o.defaultDomain
		if err := domain.Validate(); err != nil {
			return nil, err
		}
	} else {
		d, err := parseDomain(raw.Domain)
		if err != nil {
			return nil, err
		}
		domain = d
	}

	if raw.Message == nil {
		return nil, encodingErr(ErrMissingField, "message", "message is empty")
	}
	msg, err := convertStruct(types, raw.PrimaryType, raw.Message, raw.PrimaryType)
	if err != nil {
		return nil, err
	}

	return &TypedData{
		Types:       types,
		PrimaryType: raw.PrimaryType,
		Domain:      domain,
		Message:     msg,
	}, nil
}

// Hash 返回签名摘要
func (td *TypedData) Hash() (common.Hash, error) {
	return Digest(td.Domain, td.Types, td.PrimaryType, td.Message)
}

func (td *TypedData) StructHash() (common.Hash, error) {
	return HashStruct(td.Types, td.PrimaryType, td.Message)
}

func sameFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parseDomain(raw map[string]any) (Domain, error) {
	domainErr := func(field, format string, args ...any) error {
		return encodingErr(ErrInvalidDomain, DomainTypeName+"."+field, format, args...)
	}

	var unknown []string
	for k := range raw {
		switch k {
		case "name", "version", "chainId", "verifyingContract":
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Domain{}, encodingErr(ErrInvalidDomain, DomainTypeName, "unsupported fields %v", unknown)
	}

	var d Domain
	name, ok := raw["name"].(string)
	if !ok {
		return Domain{}, domainErr("name", "want string")
	}
	d.Name = name

	version, ok := raw["version"].(string)
	if !ok {
		return Domain{}, domainErr("version", "want string")
	}
	d.Version = version

	chainID, ok := jsonInt(raw["chainId"])
	if !ok {
		return Domain{}, domainErr("chainId", "want integer, got %v", raw["chainId"])
	}
	d.ChainID = chainID.BigInt()

	contract, ok := raw["verifyingContract"].(string)
	if !ok {
		return Domain{}, domainErr("verifyingContract", "want address")
	}
	addr, err := ParseAddress(contract)
	if err != nil {
		return Domain{}, domainErr("verifyingContract", "%v", err)
	}
	d.VerifyingContract = common.Address(addr)

	if err := d.Validate(); err != nil {
		return Domain{}, err
	}
	return d, nil
}

func jsonInt(raw any) (Int, bool) {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return Int{}, false
	}
	x, ok := parseBigInt(s)
	if !ok {
		return Int{}, false
	}
	return Int{v: x}, true
}

func convertStruct(types Types, name string, raw map[string]any, path string) (Message, error) {
	fields := types[name]
	declared := make(map[string]struct{}, len(fields))
	msg := make(Message, len(fields))

	for _, f := range fields {
		declared[f.Name] = struct{}{}
		fieldPath := path + "." + f.Name
		rv, ok := raw[f.Name]
		if !ok {
			return nil, encodingErr(ErrMissingField, fieldPath, "field %q of %s is not set", f.Name, name)
		}
		ft, _, _ := parseType(types, f.Type)
		v, err := convertValue(types, ft, rv, fieldPath)
		if err != nil {
			return nil, err
		}
		msg[f.Name] = v
	}

	for k := range raw {
		if _, ok := declared[k]; !ok {
			return nil, encodingErr(ErrTypeMismatch, path, "unexpected field %q for %s", k, name)
		}
	}
	return msg, nil
}

func convertValue(types Types, ft *fieldType, raw any, path string) (Value, error) {
	mismatch := func(format string, args ...any) error {
		return encodingErr(ErrTypeMismatch, path, format, args...)
	}

	switch ft.kind {
	case kindUint, kindInt:
		x, ok := jsonInt(raw)
		if !ok {
			return nil, mismatch("want %s, got %v", ft.raw, raw)
		}
		return x, nil

	case kindAddress:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("want address, got %T", raw)
		}
		addr, err := ParseAddress(s)
		if err != nil {
			return nil, mismatch("%v", err)
		}
		return addr, nil

	case kindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch("want bool, got %T", raw)
		}
		return Bool(b), nil

	case kindString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("want string, got %T", raw)
		}
		return String(s), nil

	case kindBytes, kindFixedBytes:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("want 0x-hex %s, got %T", ft.raw, raw)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, mismatch("%s: %v", ft.raw, err)
		}
		return Bytes(b), nil

	case kindArray:
		items, ok := raw.([]any)
		if !ok {
			return nil, mismatch("want %s, got %T", ft.raw, raw)
		}
		arr := make(Array, len(items))
		for i, item := range items {
			v, err := convertValue(types, ft.elem, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	case kindStruct:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch("want %s, got %T", ft.name, raw)
		}
		return convertStruct(types, ft.name, m, path)
	}
	return nil, encodingErr(ErrUnknownType, path, "unsupported type %q", ft.raw)
}
