package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList 以 JSON 数组形式存储的有序字符串列表（作曲者等）
type StringList []string

// Scan 实现 sql.Scanner 接口
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, (*[]string)(s))
}

// Value 实现 driver.Valuer 接口。空列表写成 "[]" 而不是 NULL。
// 不转义 & < >，LIKE 子串匹配与全文索引都直接作用于存储的文本。
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(s)); err != nil {
		return nil, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// MarshalJSON 空列表输出为 []
func (s StringList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
