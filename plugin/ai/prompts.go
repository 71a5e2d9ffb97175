package ai

// visionSystemPrompt constrains the model to a bare JSON answer.
const visionSystemPrompt = "Return only JSON. No explanations."

// visionInstruction is sent alongside the image.
const visionInstruction = "Extract all useful structured information from this image. Follow the schema."

// visionSchemaPrompt describes the interpretation object the parser accepts.
const visionSchemaPrompt = `
Rules:
- Only output JSON
- No markdown
- Response must start with "{"

Schema:
{
  "todos": [
    {
      "deadline": "string | null | infinity",
      "task": "string",
      "checkbox_checked": true | false
    }
  ],
  "quote_of_the_day": "string | null",
  "written_and_drawn_notes_summary": ["string"],
  "sticky_notes_summary": ["string"]
}
`
