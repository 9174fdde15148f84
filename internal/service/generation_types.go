package service

import (
	"bytes"
	"encoding/json"
)

// GeneratedPath 模型生成的学习路径骨架, 也是 materialize 接口的输入
type GeneratedPath struct {
	Path     GeneratedPathHeader `json:"path"`
	Branches []GeneratedBranch   `json:"branches"`
}

type GeneratedPathHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type GeneratedBranch struct {
	Title string          `json:"title"`
	Items []GeneratedItem `json:"items"`
}

type GeneratedItem struct {
	Title    string             `json:"title"`
	Sections []GeneratedSection `json:"sections,omitempty"`
}

// GeneratedSection Content 可能是字符串、数组或对象, 按 Type 归一化
type GeneratedSection struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content" swaggertype:"object"`
}

// generatedStructure 兼容模型返回 {title, description, branches} 或 {path:{...}, branches}
type generatedStructure struct {
	Title       string              `json:"title"`
	Subtitle    string              `json:"subtitle"`
	Description string              `json:"description"`
	Path        GeneratedPathHeader `json:"path"`
	Branches    []GeneratedBranch   `json:"branches"`
}

func (g generatedStructure) normalize() GeneratedPath {
	out := GeneratedPath{Path: g.Path, Branches: g.Branches}
	if out.Path.Title == "" {
		out.Path.Title = g.Title
	}
	if out.Path.Subtitle == "" {
		out.Path.Subtitle = g.Subtitle
	}
	if out.Path.Subtitle == "" {
		out.Path.Subtitle = g.Description
	}
	return out
}

// CountRecords 骨架展开后 root 列以下的记录数
func (g GeneratedPath) CountRecords() int {
	n := 0
	for _, b := range g.Branches {
		n += 2 // 模块条目 + 主题列
		for _, it := range b.Items {
			n++
			if len(it.Sections) > 0 {
				n += 1 + len(it.Sections)
			}
		}
	}
	return n
}

type generatedSections struct {
	Sections []GeneratedSection `json:"sections"`
}

// FlexString 接受字符串、数字或布尔值
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*f = "True"
		} else {
			*f = "False"
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type GeneratedQuiz struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	QuestionText  string     `json:"question_text"`
	Question      string     `json:"question,omitempty"`
	QuestionType  string     `json:"question_type"`
	Type          string     `json:"type,omitempty"`
	Options       []string   `json:"options,omitempty"`
	CorrectAnswer FlexString `json:"correct_answer" swaggertype:"string"`
	Explanation   string     `json:"explanation,omitempty"`
}

func (q GeneratedQuestion) text() string {
	if q.QuestionText != "" {
		return q.QuestionText
	}
	return q.Question
}

func (q GeneratedQuestion) kind() string {
	if q.QuestionType != "" {
		return q.QuestionType
	}
	return q.Type
}

type QuizOptions struct {
	NumQuestions int    `json:"numQuestions"`
	Difficulty   string `json:"difficulty"` // easy, medium, hard
	Type         string `json:"type"`       // multiple_choice, true_false, short_answer, mixed
}

func (o QuizOptions) withDefaults() QuizOptions {
	if o.NumQuestions <= 0 {
		o.NumQuestions = 5
	}
	if o.NumQuestions > 20 {
		o.NumQuestions = 20
	}
	switch o.Difficulty {
	case "easy", "medium", "hard":
	default:
		o.Difficulty = "medium"
	}
	switch o.Type {
	case "multiple_choice", "true_false", "short_answer", "mixed":
	default:
		o.Type = "multiple_choice"
	}
	return o
}
