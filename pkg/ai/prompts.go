package ai

// ExtractPrompt instructs the model to pull person names out of a discussion
// thread. The response format is enforced separately through a JSON schema.
const ExtractPrompt = `You are extracting person names from an email discussion.

Consider the sender, receiver, CC and body. Report every person name exactly
as it appears in the text. Do not report email addresses, organizations or
locations - only person names.

For each name, classify its role:
- "sender" if the name belongs to the person who wrote the message
- "receiver" if it belongs to a direct or CC recipient
- "mentioned" if it only appears in the body

Count how many times each name appears in the discussion. Report an empty
mention list if no person names are found.`
