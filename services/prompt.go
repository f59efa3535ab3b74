package services

import (
	"fmt"

	"compforge/models"
)

type TurnRole string

const (
	RoleSystem    TurnRole = "system"
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one role-tagged entry of the prompt sent downstream.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

const (
	// History is bounded to keep prompts inside token limits. Truncation
	// always drops the oldest messages.
	generationHistoryLimit = 5
	refinementHistoryLimit = 3
)

const generationSystemPrompt = `You are an expert React component generator. Your task is to create high-quality, production-ready React components based on user descriptions.

Guidelines:
1. Generate clean, modern React components using functional components and hooks
2. Include comprehensive CSS styling with modern design principles
3. Use semantic HTML elements and proper accessibility attributes
4. Implement responsive design with mobile-first approach
5. Add hover states, transitions, and micro-interactions where appropriate
6. Follow React best practices and naming conventions
7. Include TypeScript types when beneficial
8. Make components reusable and configurable through props

Response format:
- Provide the complete JSX/TSX code for the component
- Include all necessary CSS styles
- Add a brief description of the component's purpose and features
- Suggest appropriate component name

Always respond with valid, executable code that can be rendered immediately.`

const refinementSystemPromptFormat = `You are refining an existing React component. The user wants to modify the current component based on their feedback.

Current Component:
Name: %s
Description: %s

JSX Code:
%s

CSS Code:
%s

Guidelines for refinement:
1. Make only the requested changes while preserving the component's core functionality
2. Maintain code quality and consistency
3. Ensure the refined component is still production-ready
4. Keep the same component structure unless major changes are requested
5. Update both JSX and CSS as needed
6. Preserve existing functionality that wasn't mentioned for change

Respond with the complete refined component code.`

// BuildGenerationContext assembles the prompt for a fresh generation: the
// fixed system instruction, the most recent prior turns in chronological
// order, then the new user prompt last.
func BuildGenerationContext(prompt string, prior []models.Message) []Turn {
	turns := []Turn{{Role: RoleSystem, Content: generationSystemPrompt}}
	turns = appendHistory(turns, prior, generationHistoryLimit)
	return append(turns, Turn{Role: RoleUser, Content: prompt})
}

// BuildRefinementContext assembles the prompt for an in-place edit. The
// current component is embedded verbatim in the system instruction so the
// model refines rather than regenerates.
func BuildRefinementContext(prompt string, current *models.Component, prior []models.Message) []Turn {
	system := fmt.Sprintf(refinementSystemPromptFormat,
		current.Name, current.Description, current.JSX, current.CSS)
	turns := []Turn{{Role: RoleSystem, Content: system}}
	turns = appendHistory(turns, prior, refinementHistoryLimit)
	return append(turns, Turn{Role: RoleUser, Content: prompt})
}

func appendHistory(turns []Turn, prior []models.Message, limit int) []Turn {
	if len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}
	for _, msg := range prior {
		role := RoleAssistant
		if msg.Type == models.MessageTypeUser {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}
	return turns
}
