package entity

const ModuleItemTypeFile = "File"

type ModuleItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	ContentID int64  `json:"content_id"`
}

// Module.Items is nil when the listing left the items out (large modules).
type Module struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	ItemsCount int          `json:"items_count"`
	Items      []ModuleItem `json:"items"`
}

type Page struct {
	PageID int64  `json:"page_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type Assignment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Submission struct {
	ID           int64  `json:"id"`
	AssignmentID int64  `json:"assignment_id"`
	Attachments  []File `json:"attachments"`
}
