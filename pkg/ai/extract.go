package ai

import (
	"fmt"
	"strings"
	"sync"

	"context"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Bunka-lab/epstein-files/pkg/common"
)

// maxBodyTokens bounds how much of a discussion body is sent to the
// extraction service. Long threads are truncated, never split.
const maxBodyTokens = 1200

type extractMention struct {
	Name  string `json:"name" jsonschema_description:"Person name exactly as it appears in the discussion"`
	Role  string `json:"role" jsonschema_description:"One of: sender, receiver, mentioned"`
	Count int    `json:"count" jsonschema_description:"Number of times the name appears in the discussion"`
}

type extractResponse struct {
	Mentions []extractMention `json:"mentions" jsonschema_description:"Person names found in the discussion"`
}

// CallExtractAI asks the extraction service for the person mentions of a
// single discussion. The returned records carry the discussion's thread id
// and are normalized but not yet canonicalized. Malformed roles degrade to
// "mentioned" rather than failing the discussion.
func CallExtractAI(
	ctx context.Context,
	discussion common.Discussion,
	client ExtractionAIClient,
) ([]common.MentionRecord, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}

	prompt, err := buildExtractionInput(discussion)
	if err != nil {
		return nil, err
	}

	var res extractResponse
	err = client.GenerateCompletionWithFormat(
		ctx,
		"extract_person_mentions",
		"Extract person name mentions from a discussion thread.",
		prompt,
		&res,
		WithSystemPrompts(ExtractPrompt),
	)
	if err != nil {
		return nil, err
	}

	records := make([]common.MentionRecord, 0, len(res.Mentions))
	for _, m := range res.Mentions {
		name := NormalizeName(m.Name)
		if name == "" {
			continue
		}
		count := m.Count
		if count < 1 {
			count = 1
		}
		records = append(records, common.MentionRecord{
			ThreadID: discussion.ThreadID,
			Role:     parseRole(m.Role),
			RawName:  name,
			Count:    count,
		})
	}
	return records, nil
}

func parseRole(role string) common.MentionRole {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "sender":
		return common.RoleSender
	case "receiver":
		return common.RoleReceiver
	default:
		return common.RoleMentioned
	}
}

func buildExtractionInput(discussion common.Discussion) (string, error) {
	body, err := truncateToTokens(discussion.Body, maxBodyTokens)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ID:%s\n", discussion.ThreadID)
	fmt.Fprintf(&b, "From:%s\n", discussion.Sender)
	fmt.Fprintf(&b, "To:%s\n", discussion.Receiver)
	if discussion.CC != "" {
		fmt.Fprintf(&b, "CC:%s\n", discussion.CC)
	}
	fmt.Fprintf(&b, "Body:%s", body)
	return b.String(), nil
}

var (
	bodyEncoderOnce sync.Once
	bodyEncoder     *tiktoken.Tiktoken
	bodyEncoderErr  error
)

func truncateToTokens(text string, maxTokens int) (string, error) {
	// A token encodes at least one byte, so a body this short can never
	// exceed the budget. The encoder loads its vocabulary on first use,
	// so it is only initialized when truncation is actually possible.
	if len(text) <= maxTokens {
		return text, nil
	}
	bodyEncoderOnce.Do(func() {
		bodyEncoder, bodyEncoderErr = tiktoken.GetEncoding("o200k_base")
	})
	if bodyEncoderErr != nil {
		return "", bodyEncoderErr
	}
	tokens := bodyEncoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return bodyEncoder.Decode(tokens[:maxTokens]), nil
}
