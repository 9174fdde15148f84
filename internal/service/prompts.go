package service

import "fmt"

const jsonOnlyInstruction = "Respond with a single JSON object only. Do not add commentary before or after it."

const pathStructureSystem = "You are an expert curriculum designer. You turn study material into a structured learning path made of modules (branches) and topics (items). " + jsonOnlyInstruction

func pathStructurePrompt(source string) string {
	return fmt.Sprintf(`Create a learning path from the study material below.

Return JSON with this exact shape:
{
  "title": "short path title",
  "description": "one sentence describing the path",
  "branches": [
    {
      "title": "module title",
      "items": [
        {
          "title": "topic title",
          "sections": [
            {"type": "heading", "content": "text"},
            {"type": "paragraph", "content": "text"},
            {"type": "code", "content": "source code"},
            {"type": "list", "content": ["point", "point"]}
          ]
        }
      ]
    }
  ]
}

Use 3 to 8 modules with 2 to 6 topics each. "sections" is optional per topic; include it only when the material covers the topic directly.

Study material:
"""
%s
"""`, source)
}

const pathContentSystem = "You are a patient teacher writing concise study notes for one topic of a learning path. " + jsonOnlyInstruction

func pathContentPrompt(itemTitle, excerpt string) string {
	return fmt.Sprintf(`Write study notes for the topic "%s".

Return JSON: {"sections": [{"type": "heading|paragraph|code|list", "content": ...}]}
"content" is a string, except for "list" where it is an array of strings.
Keep it to 3-10 sections and stay grounded in the excerpt when one is given.

Source excerpt:
"""
%s
"""`, itemTitle, excerpt)
}

const quizSystem = "You write fair, unambiguous quiz questions that test understanding rather than recall of wording. " + jsonOnlyInstruction

func quizPrompt(content string, opts QuizOptions) string {
	return fmt.Sprintf(`Write a %s quiz of %d questions about the content below.
Question type: %s ("mixed" means any combination of multiple_choice, true_false and short_answer).

Return JSON:
{
  "title": "quiz title",
  "description": "one sentence",
  "questions": [
    {
      "question_text": "...",
      "question_type": "multiple_choice|true_false|short_answer",
      "options": ["A", "B", "C", "D"],
      "correct_answer": "exact text of the correct option, True/False, or a short answer",
      "explanation": "why the answer is correct"
    }
  ]
}
"options" is required for multiple_choice, must be ["True","False"] for true_false and omitted for short_answer.

Content:
"""
%s
"""`, opts.Difficulty, opts.NumQuestions, opts.Type, content)
}

const chatSystem = "You are PrepX's study assistant. Answer the learner's question clearly, with short examples when they help. Use Markdown."

func chatSystemWithContext(pathContext string) string {
	if pathContext == "" {
		return chatSystem
	}
	return chatSystem + "\n\nThe learner is studying the following learning path; use it as background:\n\n" + pathContext
}
