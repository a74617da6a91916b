package receipt

// NewID marks a receipt that has not been persisted yet. The backend assigns
// ids starting at 1.
const NewID = 0

// DefaultCategory is used when the backend or the user leaves the category empty.
const DefaultCategory = "Inne"

// LineItem is one purchased product on a receipt. An empty Name means the row
// is discarded on save.
type LineItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Receipt represents a receipt as returned by the backend
type Receipt struct {
	ID          int        `json:"id"`
	StoreName   string     `json:"store_name"`
	Date        string     `json:"date"` // YYYY-MM-DD or empty
	Category    string     `json:"category"`
	TotalAmount float64    `json:"total_amount"`
	Items       []LineItem `json:"items"`
}

// Draft is a receipt without its id. It is the body of create and update requests.
type Draft struct {
	StoreName   string     `json:"store_name"`
	Date        string     `json:"date"`
	Category    string     `json:"category"`
	TotalAmount float64    `json:"total_amount"`
	Items       []LineItem `json:"items"`
}

// Draft returns the receipt without its id
func (r Receipt) Draft() Draft {
	items := make([]LineItem, len(r.Items))
	copy(items, r.Items)
	return Draft{
		StoreName:   r.StoreName,
		Date:        r.Date,
		Category:    r.Category,
		TotalAmount: r.TotalAmount,
		Items:       items,
	}
}

// CategoryOrDefault returns the category, or DefaultCategory when it is empty
func (r Receipt) CategoryOrDefault() string {
	if r.Category == "" {
		return DefaultCategory
	}
	return r.Category
}

// ScanStatusSaved is the per-file status the backend reports for a stored receipt.
const ScanStatusSaved = "saved"

// ScanResult is the backend's verdict for one uploaded file
type ScanResult struct {
	Filename string `json:"filename"`
	Token    string `json:"token,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	DBID     int    `json:"db_id,omitempty"`
}

// Saved reports whether the backend stored the receipt
func (s ScanResult) Saved() bool {
	return s.Status == ScanStatusSaved
}

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one transcript entry
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UploadFile is one file of a scan request
type UploadFile struct {
	Token       string
	Filename    string
	ContentType string
	Data        []byte
}
