package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const codeFence = "```"

var ErrEmptyResponse = errors.New("empty AI response")

// MalformedResponseError 清理后的文本无法解析为 JSON
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed AI response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// StripCodeFence 去掉最外层的一对 ``` 包裹, 内部出现的 ``` 保持不变
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, codeFence) {
		s = s[len(codeFence):]
		// 语言标记 (```json) 到行尾为止
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
				s = s[nl+1:]
			}
		} else {
			s = strings.TrimLeftFunc(s, unicode.IsLetter)
		}
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, codeFence) {
			s = s[:len(s)-len(codeFence)]
		}
	}
	return strings.TrimSpace(s)
}

// ParseJSONResponse 从模型输出中解析 JSON 对象到 out
func ParseJSONResponse(raw string, out any) error {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return ErrEmptyResponse
	}

	err := json.Unmarshal([]byte(cleaned), out)
	if err == nil {
		return nil
	}

	// 模型偶尔在 JSON 前后附带说明文字
	start, end := strings.IndexByte(cleaned, '{'), strings.LastIndexByte(cleaned, '}')
	if start >= 0 && end > start && (start > 0 || end < len(cleaned)-1) {
		if json.Unmarshal([]byte(cleaned[start:end+1]), out) == nil {
			return nil
		}
	}

	return &MalformedResponseError{Raw: cleaned, Err: err}
}
