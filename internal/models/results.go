package models

// AuditResult is the payload produced by one audit type.
type AuditResult interface {
	AuditType() AuditType
}

// AuditResults holds at most one result per audit type. Each field's bson name
// matches its AuditType so partial updates can address "results_by_type.<TYPE>".
type AuditResults struct {
	RecordedLinePhrases *RecordedLineAudit `json:"RECORDED_LINE_PHRASES,omitempty" bson:"RECORDED_LINE_PHRASES,omitempty"`
	SectionBreakdown    *SectionAudit      `json:"SECTION_BREAKDOWN,omitempty" bson:"SECTION_BREAKDOWN,omitempty"`
}

// Has reports whether a result is stored for t.
func (r AuditResults) Has(t AuditType) bool {
	return r.Get(t) != nil
}

// Get returns the stored result for t, or nil.
func (r AuditResults) Get(t AuditType) AuditResult {
	switch t {
	case AuditTypeRecordedLinePhrases:
		if r.RecordedLinePhrases != nil {
			return r.RecordedLinePhrases
		}
	case AuditTypeSectionBreakdown:
		if r.SectionBreakdown != nil {
			return r.SectionBreakdown
		}
	}
	return nil
}

// RecordedLineAudit is the aggregate result of the transfer/recorded-line audit.
type RecordedLineAudit struct {
	TotalHumanTransfers int            `json:"totalHumanTransfers" bson:"total_human_transfers"`
	TotalCompliant      int            `json:"totalCompliant" bson:"total_compliant"`
	AuditedChunks       []AuditedChunk `json:"auditedChunks" bson:"audited_chunks"`
}

func (*RecordedLineAudit) AuditType() AuditType { return AuditTypeRecordedLinePhrases }

// AuditedChunk is the compliance verdict for one detected transfer. Ids and
// content are looked up from the canonical conversation by global index.
type AuditedChunk struct {
	TransferIndex       int    `json:"transferIndex" bson:"transfer_index"`
	HasPhrase           bool   `json:"hasPhrase" bson:"has_phrase"`
	TransferMessageID   string `json:"transferMessageId" bson:"transfer_message_id"`
	TransferContent     string `json:"transferContent" bson:"transfer_content"`
	ComplianceIndex     int    `json:"complianceIndex" bson:"compliance_index"`
	ComplianceMessageID string `json:"complianceMessageId" bson:"compliance_message_id"`
	ComplianceContent   string `json:"complianceContent" bson:"compliance_content"`
}

// SectionType is a phase of a verification call.
type SectionType string

const (
	SectionIVR                SectionType = "IVR"
	SectionIntroduction       SectionType = "INTRODUCTION"
	SectionTransfer           SectionType = "TRANSFER"
	SectionBenefitsCollection SectionType = "BENEFITS_COLLECTION"
)

// AllSectionTypes returns the section taxonomy in call-flow order.
func AllSectionTypes() []SectionType {
	return []SectionType{SectionIVR, SectionIntroduction, SectionTransfer, SectionBenefitsCollection}
}

// Section is a contiguous, typed span of the conversation. Bounds are inclusive.
type Section struct {
	Type           SectionType `json:"type" bson:"type"`
	StartIndex     int         `json:"startIndex" bson:"start_index"`
	EndIndex       int         `json:"endIndex" bson:"end_index"`
	StartMessageID string      `json:"startMessageId" bson:"start_message_id"`
	EndMessageID   string      `json:"endMessageId" bson:"end_message_id"`
}

// SectionAudit is the result of the section breakdown audit.
type SectionAudit struct {
	Sections      []Section `json:"sections" bson:"sections"`
	TotalSections int       `json:"totalSections" bson:"total_sections"`
}

func (*SectionAudit) AuditType() AuditType { return AuditTypeSectionBreakdown }
