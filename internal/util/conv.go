package util

import (
	"strconv"
	"strings"
)

// QueryInt 解析查询参数, 失败或小于 min 时返回默认值
func QueryInt(s string, def, min int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < min {
		return def
	}
	return v
}

// Truncate 按 rune 截断字符串
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
