package script

import (
	"fmt"
	"strings"
)

const storyboardPrompt = `You are a storyboard creator. You create a movie scene with a name, setting, theme, speakers, and 4-12 frames. Return a JSON object matching the JSON schema included in this message. Each frame must include the speakerId of the person speaking, brief dialog (at least 1 word, hard limit at 250 characters), an emotion from exactly this set: 'Neutral', 'Happy', 'Sad', 'Surprise', 'Angry', 'Dull', and a visual description. Do not put curly braces in the spoken dialog; curly braces go around character references in the frame descriptions. I will look for {1} and {2} for speaker 1 and speaker 2, respectively, and rely on the braces for the replacements.
Using the prompt, create information to properly describe a full movie arc, and use this as the basis for the dialog. Think of interesting things that will happen as a result of the prompt.
I will process your response through a JSON decoder, so only reply with valid JSON in the form provided. Focus on making the storyboard entertaining.`

const storyboardSchema = `{
  "type": "object",
  "properties": {
    "name": {
      "type": "string",
      "description": "The name of the movie/scene being shown in the storyboard, 1-4 words"
    },
    "settingDescription": {
      "type": "string",
      "description": "Prompt used in all frames which sets a consistent setting for the whole storyboard"
    },
    "themeVisuals": {
      "type": "string",
      "description": "Prompt used in all frames which gives the storyboard a cohesive artistic theme"
    },
    "negativePrompt": {
      "type": "string",
      "description": "The prompt used as the negative prompt when creating all storyboard frames"
    },
    "speakers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "integer", "description": "Unique id for this speaker, referenced from frames"},
          "visualDescription": {"type": "string", "description": "Prompt used wherever this speaker is referenced in a frame"},
          "gender": {"type": "string", "description": "Gender of the speaker, either 'male' or 'female'"}
        },
        "required": ["id", "visualDescription", "gender"]
      }
    },
    "frames": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "speakerId": {"type": "integer", "description": "The id of the speaker saying this frame's dialog"},
          "dialog": {"type": "string", "description": "The line of dialog the character is saying"},
          "emotion": {"type": "string", "description": "How the line is delivered: Neutral, Happy, Sad, Surprise, Angry or Dull"},
          "visualDescription": {"type": "string", "description": "Prompt describing what makes this frame unique. Reference characters as {#} where # is the speakerId, e.g. '{2} looking over the ocean from a boat'"}
        },
        "required": ["speakerId", "dialog", "emotion", "visualDescription"]
      }
    }
  },
  "required": ["name", "settingDescription", "themeVisuals", "negativePrompt", "speakers", "frames"]
}`

// buildStoryboardPrompt composes the initial generation request.
func buildStoryboardPrompt(userPrompt string) string {
	var sb strings.Builder
	sb.WriteString(storyboardPrompt)
	sb.WriteString("\nThe return object is represented by the following JSONSchema: ")
	sb.WriteString(storyboardSchema)
	sb.WriteString("\nHere is the user's prompt: \"\"\"")
	sb.WriteString(strings.TrimSpace(userPrompt))
	sb.WriteString("\"\"\"")
	return sb.String()
}

// buildCorrectionPrompt quotes each violation verbatim and asks for a full
// replacement object that changes only the offending fields. The rejected
// candidate is already in the conversation history as the assistant's last turn.
func buildCorrectionPrompt(violations []Violation) string {
	var sb strings.Builder
	sb.WriteString("The JSON object you returned has problems that must be fixed:\n")
	for _, v := range violations {
		fmt.Fprintf(&sb, "- %s\n", v.String())
	}
	sb.WriteString("Return the full corrected JSON object. Modify only the offending fields and keep everything else exactly as it was. Reply with nothing but valid JSON.")
	return sb.String()
}

// cleanJSON strips markdown fences if the model wraps its reply in ```json ... ```.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
