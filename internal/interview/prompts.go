package interview

import (
	"fmt"
	"strings"
)

// systemPrompt is shared by every generation request.
const systemPrompt = `You are an AI Interview Coach using the Pimsleur method for interview practice.

Your role is to:
1. Generate interview questions appropriate to the difficulty level and category
2. Evaluate user responses for clarity, confidence, and technical accuracy
3. Provide warm, encouraging, and constructive feedback
4. Focus on helping users improve their speaking skills and interview performance

When evaluating responses, analyze:
- Clarity: How well-structured and understandable is the answer?
- Confidence: Does the speaker sound assured and natural?
- Technical Accuracy: Is the content correct and relevant?
- Speaking patterns: Filler words (um, uh, like), pace, pauses

Provide actionable feedback that helps users improve specific aspects of their delivery.`

// Generation settings per request kind.
const (
	questionTemperature = 0.8
	questionMaxTokens   = 150

	answerTemperature = 0.7
	answerMaxTokens   = 200

	customTemperature = 0.8
	customMaxTokens   = 300

	evalTemperature = 0.7
	evalMaxTokens   = 800
)

// Fallback texts used when the model returns nothing usable.
const (
	fallbackQuestion     = "Tell me about yourself and your background."
	fallbackModelAnswer  = "I am a dedicated professional with strong skills and experience in my field."
	fallbackCustomQ      = "Tell me about your relevant experience for this role."
	fallbackCustomAnswer = "I have extensive experience that aligns well with the requirements of this position."
	fallbackFeedback     = "Good effort! Keep practicing."
)

func questionPrompt(category, difficulty string, avoid []string) string {
	var sb strings.Builder
	sb.WriteString("Generate one interview question for the following criteria:\n")
	fmt.Fprintf(&sb, "- Category: %s\n", category)
	fmt.Fprintf(&sb, "- Difficulty: %s\n", difficulty)
	if len(avoid) > 0 {
		fmt.Fprintf(&sb, "- Avoid these already asked questions: %s\n", strings.Join(avoid, ", "))
	}
	sb.WriteString("\nReturn ONLY the question text, nothing else.")
	return sb.String()
}

func modelAnswerPrompt(question, category, difficulty string) string {
	return fmt.Sprintf(`Generate a model answer for this interview question:
Question: %q
Category: %s
Difficulty: %s

Create a concise, professional answer (2-3 sentences, about 30-50 words) that demonstrates:
- Clear structure and confidence
- Relevant content
- Natural speaking style
- Professional tone

Return ONLY the model answer text, nothing else.`, question, category, difficulty)
}

func customPrompt(jobDescription string, avoid []string) string {
	var sb strings.Builder
	sb.WriteString("Based on this job description, generate ONE highly relevant interview question and a model answer:\n\n")
	sb.WriteString("Job Description:\n\"\"\"\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\"\"\"\n\n")
	if len(avoid) > 0 {
		fmt.Fprintf(&sb, "Previously asked questions (avoid these): %s\n\n", strings.Join(avoid, ", "))
	}
	sb.WriteString(`Generate a JSON response with these exact fields:
{
  "question": "<A specific, relevant interview question based on the job description>",
  "answer": "<A concise, professional model answer (2-3 sentences, 30-50 words)>"
}

The question should:
- Be directly relevant to the job requirements
- Test skills/experience mentioned in the job description
- Be behavioral or technical based on the role
- Be clear and specific

The answer should:
- Demonstrate relevant experience
- Show skills matching the job requirements
- Be confident and professional
- Be natural and conversational`)
	return sb.String()
}

func evaluationPrompt(question, transcript string) string {
	return fmt.Sprintf(`Evaluate this interview response:

Question: %q
Answer: %q

Analyze the response and provide a JSON evaluation with these exact fields:
{
  "clarity_score": <number 0-100>,
  "confidence_score": <number 0-100>,
  "technical_accuracy": <number 0-100>,
  "filler_word_count": <integer>,
  "speech_pace": <words per minute estimate>,
  "pause_count": <estimate of significant pauses>,
  "feedback_text": "<warm, conversational feedback paragraph>",
  "improvement_suggestions": ["<specific actionable tip>", "<another tip>"],
  "strengths": ["<what they did well>"],
  "areas_to_improve": ["<specific area to work on>"]
}

Be encouraging but honest. Focus on helping them improve their interview skills.`, question, transcript)
}

// stripMarkdown removes the code fences some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// cleanQuestion trims whitespace and surrounding quotes from a generated
// question.
func cleanQuestion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}
