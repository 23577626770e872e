package descriptions

// Tool descriptions with practical examples and use cases

const (
	TocOpenDocumentDescription = `Open and validate a PDF document for table of contents editing.

**When to use:** Always first. Every other tool operates on the currently open document.

**Why it's useful:** Validates the file up front (existence, extension, size limit, PDF structure) so later operations fail fast with a clear message instead of deep inside extraction.

**Examples:**
• "Open /docs/annual-report.pdf so we can build its table of contents"
• "Load contract.pdf and tell me how many pages it has"

**Best practices:** Opening a new document discards the previous tree and audit trail. Generate a TOC right after opening.`

	TocGenerateDescription = `Generate a table of contents from the document's text layout.

**When to use:** After opening a document, or to start over from scratch.

**Why it's useful:** Detects headings heuristically from font sizes and weights relative to the body text, clusters them into levels, and assembles a nested tree. No network calls, fully deterministic.

**Examples:**
• "Generate the TOC for the open document"
• "Regenerate the TOC to discard my edits and start fresh"

**Best practices:** Entries scored below the confidence threshold are flagged with an "Unknown: " prefix. Review those first, then confirm or delete them.`

	TocRefineDescription = `Re-score the generated TOC entries with an LLM provider.

**When to use:** After generating, when heading detection left false positives (footers, captions) or wrong levels.

**Why it's useful:** Sends entries in bounded batches for classification while a strict validation gate drops anything the provider invented or mangled. A failed batch keeps its heuristic scores, so refinement can only add information, never lose entries to provider noise.

**Examples:**
• "Refine the TOC using my OpenAI key"
• "Refine via the Azure deployment endpoint"

**Best practices:** Entries you already confirmed are never touched. The API key is used for this call only and never stored.`

	TocEditLabelDescription = `Rename a TOC entry.

**When to use:** A detected heading has the wrong text, or you want a cleaner label than what appears in the document.

**Examples:**
• "Rename entry 3f2a to 'Chapter 1: Introduction'"
• "Strip the 'Unknown: ' prefix and fix the typo in that heading"

**Best practices:** Blank labels are rejected. The audit trail records both the old and the new label.`

	TocDeleteEntryDescription = `Delete a TOC entry and its entire subtree.

**When to use:** A detected entry is not a real heading, or a whole section should be dropped from the outline.

**Examples:**
• "Delete the 'Page 42 of 98' footer entry"
• "Remove the appendix section and everything under it"

**Best practices:** Children are deleted with their parent. Use toc_tree first to see what a deletion will take with it.`

	TocConfirmEntryDescription = `Confirm a TOC entry as a genuine heading.

**When to use:** An entry was flagged ambiguous (low confidence) but you verified it is correct, or you want to protect an entry from future refinement passes.

**Examples:**
• "Confirm the 'Unknown: Glossary' entry, it is a real section"
• "Mark Chapter 7 as verified so refinement leaves it alone"

**Best practices:** Confirmed entries keep their confidence score but are exempt from LLM refinement.`

	TocReorderDescription = `Reorder the children of one TOC entry, or the top-level entries.

**When to use:** Entries came out in the wrong order, typically in documents with multi-column layouts.

**Examples:**
• "Move Chapter 3 before Chapter 2"
• "Reorder the subsections of the Results chapter"

**Best practices:** The id list must be exactly the existing children of the named parent. Reordering never moves entries between parents.`

	TocAddEntryDescription = `Manually add a TOC entry.

**When to use:** The extraction missed a heading, or you want outline entries the document never had (a cover page, an index).

**Examples:**
• "Add 'Executive Summary' at level 1, page 2"
• "Add a 'References' entry under the last chapter"

**Best practices:** Manual entries are user-confirmed from the start and never touched by refinement. The page must exist in the document.`

	TocSaveDescription = `Save the current TOC into a copy of the PDF as outline bookmarks.

**When to use:** Editing is done and you want a PDF whose bookmark panel shows your table of contents.

**Examples:**
• "Save the TOC to /docs/annual-report-toc.pdf"

**Best practices:** The source PDF is never modified; output goes to the path you name. Unconfirmed entries are saved with their flagged labels, so resolve them first for a clean outline.`

	TocTreeDescription = `Show the current TOC tree.

**When to use:** Any time you need entry ids, structure, confidence scores, or status before editing.

**Examples:**
• "Show me the current table of contents"
• "List the entries still flagged as unknown"

**Best practices:** Ids shown here are the handles every mutation tool takes.`

	TocAuditTrailDescription = `Show the audit trail of every TOC mutation in this session.

**When to use:** To review what was generated, edited, deleted, confirmed, moved, added, or saved, and in what order.

**Examples:**
• "What changes have been made to this TOC?"
• "When was the Results chapter renamed?"

**Best practices:** The trail is append-only and is reset when a document is opened or the TOC is regenerated.`

	TocServerInfoDescription = `Get server information, available tools, directory contents, and usage guidance.

**When to use:** To discover capabilities, see which PDF files are available in the working directory, or check limits like the maximum file size.

**Examples:**
• "What can this server do?"
• "List the PDFs in the working directory"`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"toc_open_document": TocOpenDocumentDescription,
	"toc_generate":      TocGenerateDescription,
	"toc_refine":        TocRefineDescription,
	"toc_edit_label":    TocEditLabelDescription,
	"toc_delete_entry":  TocDeleteEntryDescription,
	"toc_confirm_entry": TocConfirmEntryDescription,
	"toc_reorder":       TocReorderDescription,
	"toc_add_entry":     TocAddEntryDescription,
	"toc_save":          TocSaveDescription,
	"toc_tree":          TocTreeDescription,
	"toc_audit_trail":   TocAuditTrailDescription,
	"toc_server_info":   TocServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
