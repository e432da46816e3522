package matching

import "encoding/json"

// EncodeFilters 把偏好序列化为存储用 JSON。
func EncodeFilters(f Filters) string {
	data, err := json.Marshal(&f)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ParseFilters 解析存储的偏好 JSON。
// 解析失败按无偏好处理，不阻塞撮合。
func ParseFilters(raw string) Filters {
	var f Filters
	if raw == "" {
		return f
	}
	_ = json.Unmarshal([]byte(raw), &f)
	return f
}

// EncodeInterests 把兴趣标签序列化为存储用 JSON。
func EncodeInterests(interests []string) string {
	if len(interests) == 0 {
		return "[]"
	}
	data, err := json.Marshal(interests)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// ParseInterests 解析存储的兴趣标签 JSON。
func ParseInterests(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
