package core

import (
	"encoding/json"
	"fmt"

	"github.com/mikey/attachment-triage/internal/textutil"
)

// promptFormat instructs the model to classify attachments from the HTML
// body alone and to answer with the bare two-key JSON object.
const promptFormat = `You are analyzing an email to classify its attachments.

The email's HTML body is provided below. Based ONLY on the HTML content, classify each attachment as either "relevant" or "irrelevant".

- "relevant": attachments carrying substantive content referenced by the email: documents, reports, invoices, receipts, forms, orders, contracts, data files, and document-scan images (scanned orders, receipts, forms count as documents even though they are images).
- "irrelevant": attachments that are just noise in the HTML: social media icons, company logos, signature graphics, decorative banners, marketing images, and anything purely decorative or branding-related.

CRITICAL RULES:
- Base your classification ONLY on how the attachment is referenced or used in the HTML body.
- Do NOT use the filename, file type, or any metadata.
- IGNORE generic legal disclaimers that mention "attachments"; they are boilerplate and refer to no specific attachment.
- If the email mentions a specific count (e.g. "5 attached orders"), classify exactly that many non-decorative attachments as relevant, counting document-scan images alongside document files.
- If the email content is a brief acknowledgment ("o.k.", "thanks", "Danke!") with no mention of attachments, documents, or files, classify ALL attachments as irrelevant, regardless of type.

Attachments to classify:
%s

HTML Body:
%s

Respond with a JSON object in this exact format:
{
  "relevant": ["filename1", "filename2", ...],
  "irrelevant": ["filename3", "filename4", ...]
}

Every attachment must be classified into exactly one category. Return only the JSON, no other text.`

// BuildPrompt renders the classification prompt for one email. The same
// record always yields the same prompt: filenames keep their input order and
// the HTML body is cleaned and truncated deterministically. maxBodySize <= 0
// disables truncation.
func BuildPrompt(rec *EmailRecord, maxBodySize int) (string, error) {
	names, err := json.MarshalIndent(rec.AttachmentFilenames, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode attachment list: %w", err)
	}

	body := textutil.CleanHTML(rec.HTMLBody)
	body = textutil.SanitizeUTF8(textutil.Truncate(body, maxBodySize))

	return fmt.Sprintf(promptFormat, names, body), nil
}
