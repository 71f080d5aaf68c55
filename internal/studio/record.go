package studio

// Source identifies how an asset record entered the vault.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceUpload    Source = "upload"
)

// UploadType records which reference bucket an uploaded asset was
// destined for, if any. Empty means "no bucket" (serialized as null).
type UploadType string

const (
	UploadSubject UploadType = "SUBJECT"
	UploadStyle   UploadType = "STYLE"
	UploadScene   UploadType = "SCENE"
)

// DefaultPrompt is the placeholder stored when a record has no prompt.
const DefaultPrompt = "User Uploaded Asset"

// UploadModelID is the sentinel model identifier for non-generated assets.
const UploadModelID = "upload"

// AssetRecord is the durable unit stored in the vault. Records are
// immutable once written: mutations are full-record upserts by ID.
type AssetRecord struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Base64      string     `json:"base64,omitempty"`
	Prompt      string     `json:"prompt"`
	ModelID     string     `json:"modelId"`
	AspectRatio string     `json:"aspectRatio"`
	Timestamp   int64      `json:"timestamp"`
	Source      Source     `json:"source,omitempty"`
	UploadType  UploadType `json:"uploadType,omitempty"`
	Seed        *int64     `json:"seed,omitempty"`
}

// RefCategory is the semantic role a reference image plays in a
// generation request.
type RefCategory string

const (
	CategorySubject RefCategory = "subject"
	CategoryStyle   RefCategory = "style"
	CategoryScene   RefCategory = "scene"
)

// Categories lists the reference buckets in display order.
var Categories = []RefCategory{CategorySubject, CategoryStyle, CategoryScene}

// UploadTypeFor maps a reference category to its durable upload-type tag.
func UploadTypeFor(c RefCategory) UploadType {
	switch c {
	case CategorySubject:
		return UploadSubject
	case CategoryStyle:
		return UploadStyle
	case CategoryScene:
		return UploadScene
	}
	return ""
}

// CategoryFor is the inverse of UploadTypeFor. Unknown or empty upload
// types map to the empty category.
func CategoryFor(t UploadType) RefCategory {
	switch t {
	case UploadSubject:
		return CategorySubject
	case UploadStyle:
		return CategoryStyle
	case UploadScene:
		return CategoryScene
	}
	return ""
}

// AnalysisStatus is the per-staged-file analysis state machine.
// Transitions: pending -> loading -> done | error. The terminal states
// are left only by removing the file from staging.
type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "pending"
	AnalysisLoading AnalysisStatus = "loading"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisError   AnalysisStatus = "error"
)

// StagedFile is a transient, in-memory entry in one reference bucket.
// The preview handle's lifetime is exactly the staged file's lifetime.
type StagedFile struct {
	ID             string
	File           FileData
	Preview        string // transient display handle, owned by the staging area
	AnalysisStatus AnalysisStatus
	AnalysisResult string // comma-joined tag list, set once status is done
}

// StagedFilePatch describes a partial update applied to a staged file
// by ID. Nil fields are left untouched.
type StagedFilePatch struct {
	AnalysisStatus *AnalysisStatus
	AnalysisResult *string
}

// LibraryAssetType distinguishes freshly-uploaded session assets from
// vault history in the merged library view.
type LibraryAssetType string

const (
	LibraryUpload  LibraryAssetType = "upload"
	LibraryHistory LibraryAssetType = "history"
)

// LibraryCategory is the presentation-level category tag of a library
// asset. It is deliberately independent of the record's UploadType.
type LibraryCategory string

const (
	LibraryUncategorized LibraryCategory = "uncategorized"
	LibrarySubject       LibraryCategory = "subject"
	LibraryStyle         LibraryCategory = "style"
	LibraryScene         LibraryCategory = "scene"
)

// LibraryAsset is a read-model record in the merged library view. It is
// never persisted directly; it is reconstructible to a binary file on
// demand via the aggregator's conversion strategies.
type LibraryAsset struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	Base64    string           `json:"base64,omitempty"`
	Type      LibraryAssetType `json:"type"`
	Category  LibraryCategory  `json:"category"`
	Timestamp int64            `json:"timestamp"`
	Prompt    string           `json:"prompt,omitempty"`
	Source    Source           `json:"source,omitempty"`
	Meta      *AssetMeta       `json:"meta,omitempty"`

	// File holds the in-memory binary payload for session assets that
	// have not been round-tripped through the vault. Nil for history.
	File *FileData `json:"-"`
}

// AssetMeta carries optional probed image metadata.
type AssetMeta struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format,omitempty"`
}

// ReferenceImage is a flattened staged file ready to attach to a
// generation request.
type ReferenceImage struct {
	DataURL  string // full data URL, ready to send as an image part
	Keywords string // analysis tags, empty when analysis failed or is pending
	Type     UploadType
	Filename string
	MimeType string
}

// GenerateRequest is the input to the generation collaborator.
type GenerateRequest struct {
	Prompt          string
	ModelID         string
	AspectRatio     string
	Count           int
	ReferenceImages []ReferenceImage
}

// ImageResult is a single image returned by the generation collaborator.
type ImageResult struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Base64 string `json:"base64,omitempty"`
	Seed   *int64 `json:"seed,omitempty"`
}

// ModelDescriptor describes a selectable generation engine.
type ModelDescriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Ratios      []string `json:"ratios,omitempty"`
}
