package eip712

import (
	"sort"
	"strconv"
	"strings"
)

// Field 结构类型的字段
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types 结构类型名 -> 有序字段列表
type Types map[string][]Field

type typeKind int

const (
	kindStruct typeKind = iota
	kindUint
	kindInt
	kindAddress
	kindBool
	kindString
	kindBytes
	kindFixedBytes
	kindArray
)

// fieldType 解析后的字段类型
type fieldType struct {
	kind typeKind
	// 整数位宽, 或 bytesN 的字节数
	size int
	// 数组元素类型与长度 (T[] 为 -1)
	elem   *fieldType
	length int
	// 结构名
	name string
	raw  string
}

// parseType 解析类型字符串, 引用的结构须存在于 types 中
func parseType(types Types, t string) (*fieldType, bool, string) {
	if strings.HasSuffix(t, "]") {
		open := strings.LastIndex(t, "[")
		if open <= 0 {
			return nil, false, "malformed array type " + strconv.Quote(t)
		}
		length := -1
		if n := t[open+1 : len(t)-1]; n != "" {
			k, err := strconv.Atoi(n)
			if err != nil || k <= 0 || strconv.Itoa(k) != n {
				return nil, false, "malformed array length in " + strconv.Quote(t)
			}
			length = k
		}
		elem, ok, reason := parseType(types, t[:open])
		if !ok {
			return nil, false, reason
		}
		return &fieldType{kind: kindArray, elem: elem, length: length, raw: t}, true, ""
	}

	if ft, ok := parsePrimitive(t); ok {
		return ft, true, ""
	}
	if _, ok := types[t]; ok {
		return &fieldType{kind: kindStruct, name: t, raw: t}, true, ""
	}
	return nil, false, ""
}

func parsePrimitive(t string) (*fieldType, bool) {
	switch t {
	case "address":
		return &fieldType{kind: kindAddress, raw: t}, true
	case "bool":
		return &fieldType{kind: kindBool, raw: t}, true
	case "string":
		return &fieldType{kind: kindString, raw: t}, true
	case "bytes":
		return &fieldType{kind: kindBytes, raw: t}, true
	}

	if n, ok := numericSuffix(t, "bytes"); ok {
		if n < 1 || n > 32 {
			return nil, false
		}
		return &fieldType{kind: kindFixedBytes, size: n, raw: t}, true
	}
	if n, ok := numericSuffix(t, "uint"); ok {
		if !validIntWidth(n) {
			return nil, false
		}
		return &fieldType{kind: kindUint, size: n, raw: t}, true
	}
	if n, ok := numericSuffix(t, "int"); ok {
		if !validIntWidth(n) {
			return nil, false
		}
		return &fieldType{kind: kindInt, size: n, raw: t}, true
	}
	return nil, false
}

func numericSuffix(t, prefix string) (int, bool) {
	if !strings.HasPrefix(t, prefix) || len(t) == len(prefix) {
		return 0, false
	}
	digits := t[len(prefix):]
	n, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

func validIntWidth(bits int) bool {
	return bits >= 8 && bits <= 256 && bits%8 == 0
}

func isPrimitiveName(t string) bool {
	_, ok := parsePrimitive(t)
	return ok
}

// Validate 校验字段类型可解析、字段名唯一且不存在循环引用
func (types Types) Validate() error {
	names := types.sortedNames()
	for _, name := range names {
		if name == "" || strings.ContainsAny(name, "[](), ") {
			return encodingErr(ErrInvalidSchema, name, "invalid type name %q", name)
		}
		if isPrimitiveName(name) {
			return encodingErr(ErrInvalidSchema, name, "type name shadows primitive %q", name)
		}

		seen := make(map[string]struct{}, len(types[name]))
		for _, f := range types[name] {
			path := name + "." + f.Name
			if f.Name == "" || strings.ContainsAny(f.Name, "[](), ") {
				return encodingErr(ErrInvalidSchema, path, "invalid field name %q", f.Name)
			}
			if _, dup := seen[f.Name]; dup {
				return encodingErr(ErrInvalidSchema, path, "duplicate field")
			}
			seen[f.Name] = struct{}{}

			if _, ok, reason := parseType(types, f.Type); !ok {
				if reason != "" {
					return encodingErr(ErrInvalidSchema, path, "%s", reason)
				}
				return encodingErr(ErrUnknownType, path, "type %q is not declared", f.Type)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(types))
	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch state[name] {
		case visiting:
			return encodingErr(ErrCyclicType, name, "%s", strings.Join(append(trail, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		for _, ref := range types.references(name) {
			if err := visit(ref, append(trail, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// references 按字段顺序列出直接引用的结构类型 (含数组元素)
func (types Types) references(name string) []string {
	var refs []string
	for _, f := range types[name] {
		ft, ok, _ := parseType(types, f.Type)
		if !ok {
			continue
		}
		for ft.kind == kindArray {
			ft = ft.elem
		}
		if ft.kind == kindStruct {
			refs = append(refs, ft.name)
		}
	}
	return refs
}

// dependencies 返回 primary 可达的全部结构类型 (不含自身), 按名称排序
func (types Types) dependencies(primary string) []string {
	found := make(map[string]struct{})
	var walk func(name string)
	walk = func(name string) {
		for _, ref := range types.references(name) {
			if _, ok := found[ref]; ok || ref == primary {
				continue
			}
			found[ref] = struct{}{}
			walk(ref)
		}
	}
	walk(primary)

	deps := make([]string, 0, len(found))
	for name := range found {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

func (types Types) sortedNames() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (types Types) encodeStruct(sb *strings.Builder, name string) {
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, f := range types[name] {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f.Type)
		sb.WriteByte(' ')
		sb.WriteString(f.Name)
	}
	sb.WriteByte(')')
}

// EncodeType 返回 primaryType 的规范类型字符串, 引用结构按名称排序追加, 如
// "Mail(Person from,Person to,string contents)Person(string name,address wallet)"
func EncodeType(types Types, primaryType string) (string, error) {
	if err := types.Validate(); err != nil {
		return "", err
	}
	if _, ok := types[primaryType]; !ok {
		return "", encodingErr(ErrUnknownType, primaryType, "primary type is not declared")
	}
	return types.encodeType(primaryType), nil
}

func (types Types) encodeType(primaryType string) string {
	var sb strings.Builder
	types.encodeStruct(&sb, primaryType)
	for _, dep := range types.dependencies(primaryType) {
		types.encodeStruct(&sb, dep)
	}
	return sb.String()
}
