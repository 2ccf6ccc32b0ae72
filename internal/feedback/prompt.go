package feedback

import (
	"fmt"
	"strings"

	"github.com/feedforward/feedforward-api/internal/models"
)

// buildPrompt assembles the evaluation prompt. Section order is fixed: role
// framing, assignment details, rubric or general-evaluation guidance, the JSON
// output structure, the submission content, and a closing imperative.
func buildPrompt(req AnalysisRequest) string {
	var segments []string

	segments = append(segments,
		`You are an expert AI Teaching Assistant. Your primary goal is to provide comprehensive, constructive, and actionable feedback on a student's assignment submission.
Your feedback should be encouraging, specific, and aimed at helping the student learn and improve their work according to the provided assignment details and evaluation criteria.
You MUST respond in a valid JSON format only. Do not include any explanatory text before or after the JSON object.`)

	description := req.AssignmentDescription
	if description == "" {
		description = "No general description provided."
	}
	segments = append(segments, fmt.Sprintf("\n## Assignment Details:\nTitle: %q\nDescription: %q", req.AssignmentTitle, description))

	structureFields := []string{
		`"strengths": ["A list of 2-5 specific positive aspects of the submission, clearly explained (array of strings)."],`,
		`"improvements": ["A list of 2-5 specific areas where the submission could be improved, with constructive explanations (array of strings)."],`,
		`"suggestions": ["A list of 2-5 concrete, actionable suggestions the student can implement to improve their work or understanding (array of strings)."],`,
		`"summary": "A concise (2-4 sentences) overall summary of the submission's quality, highlighting key takeaways for the student.",`,
	}

	if req.Rubric != nil && len(req.Rubric.Criteria) > 0 {
		segments = append(segments, "\n## Evaluation Rubric:")
		segments = append(segments, "You MUST evaluate the student's submission against EACH of the following rubric criteria meticulously. For each criterion, provide specific feedback and a numeric score within the specified range.")
		segments = append(segments, formatCriteria(req.Rubric.Criteria))

		structureFields = append(structureFields,
			`"criteriaScores": [{"criteriaId": "ID_of_the_criterion", "score": <numeric score for this criterion up to its maximum>, "feedback": "Specific, detailed feedback for this particular criterion (string)."}],`,
			`"score": <an overall numeric score from 0-100; when criteria have weights, a weighted average of the per-criterion scores>`)
	} else {
		segments = append(segments,
			`
## General Evaluation Focus (No specific rubric provided):
Please analyze the submission for:
1. Clarity, coherence, and organization of the content.
2. Fulfillment of the assignment requirements as per the description.
3. Identification of strengths and positive aspects.
4. Areas that could be improved, with constructive explanations.
5. Actionable suggestions for the student.
6. If the submission appears to be code or involves technical problem-solving, also consider correctness, efficiency, and clarity of documentation.`)

		structureFields = append(structureFields,
			`"criteriaScores": [],`,
			`"score": <a numeric score from 0-100 representing the overall quality based on the general evaluation focus above>`)
	}

	segments = append(segments, fmt.Sprintf(
		"\n## JSON Output Structure:\nYour response MUST be a single, valid JSON object adhering to the following structure. Ensure all string values are properly escaped within the JSON.\n{\n  %s\n}",
		strings.Join(structureFields, "\n  ")))

	segments = append(segments, fmt.Sprintf(
		"\n## Student's Submission Content to Evaluate:\n```\n%s\n```\n", req.SubmissionContent))

	segments = append(segments, "\nProvide your feedback now as a single, valid JSON object:")

	return strings.Join(segments, "\n")
}

func formatCriteria(criteria []models.RubricCriterion) string {
	lines := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		line := fmt.Sprintf("- Criterion Name: %q (ID: %s)\n  Description: %q\n  Maximum Score: %d",
			criterion.Name, criterion.ID, criterion.Description, criterion.MaxScore)
		if criterion.Weight > 0 {
			line += fmt.Sprintf(" (Weight: %d%%)", criterion.Weight)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
