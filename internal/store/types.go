package store

// Page is a row of the page table.
type Page struct {
	ID        int64  `yaml:"id"`
	Namespace int    `yaml:"namespace"`
	Title     string `yaml:"title"`
	Latest    int64  `yaml:"latest"`
}

// Revision is a live revision row.
type Revision struct {
	ID        int64  `yaml:"id"`
	PageID    int64  `yaml:"page_id"`
	Timestamp string `yaml:"timestamp"`
	UserID    int64  `yaml:"user_id"`
	UserText  string `yaml:"user_text"`
	Comment   string `yaml:"comment"`
	Len       int64  `yaml:"len"`
	SHA1      string `yaml:"sha1"`
	Deleted   int    `yaml:"deleted"`
}

// ArchivedRevision is a revision of a deleted page.
type ArchivedRevision struct {
	Namespace int    `yaml:"namespace"`
	Title     string `yaml:"title"`
	RevID     int64  `yaml:"rev_id"`
	Timestamp string `yaml:"timestamp"`
	UserID    int64  `yaml:"user_id"`
	UserText  string `yaml:"user_text"`
	Comment   string `yaml:"comment"`
	Len       int64  `yaml:"len"`
	SHA1      string `yaml:"sha1"`
	Deleted   int    `yaml:"deleted"`
}

// OldImage is a superseded version of a file that still exists.
//
// ArchiveName is "<timestamp>!<name>" and doubles as the key of the bytes in
// the public archive area.
type OldImage struct {
	Name        string `yaml:"name"`
	ArchiveName string `yaml:"archive_name"`
	Timestamp   string `yaml:"timestamp"`
	UserID      int64  `yaml:"user_id"`
	UserText    string `yaml:"user_text"`
	Description string `yaml:"description"`
	Size        int64  `yaml:"size"`
	SHA1        string `yaml:"sha1"`
	Deleted     int    `yaml:"deleted"`
}

// FileArchive is a version of a deleted file. StorageKey names its bytes in
// the deleted area.
type FileArchive struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	ArchiveName string `yaml:"archive_name"`
	StorageKey  string `yaml:"storage_key"`
	Timestamp   string `yaml:"timestamp"`
	UserID      int64  `yaml:"user_id"`
	UserText    string `yaml:"user_text"`
	Description string `yaml:"description"`
	Size        int64  `yaml:"size"`
	SHA1        string `yaml:"sha1"`
	Deleted     int    `yaml:"deleted"`
}

// LogEntry is a row of the logging table.
type LogEntry struct {
	ID        int64  `yaml:"id"`
	Type      string `yaml:"type"`
	Action    string `yaml:"action"`
	Timestamp string `yaml:"timestamp"`
	UserID    int64  `yaml:"user_id"`
	UserText  string `yaml:"user_text"`
	Namespace int    `yaml:"namespace"`
	Title     string `yaml:"title"`
	Comment   string `yaml:"comment"`
	Deleted   int    `yaml:"deleted"`
}

// RecentChange is a row of the recentchanges index.
type RecentChange struct {
	Timestamp string `yaml:"timestamp"`
	Namespace int    `yaml:"namespace"`
	Title     string `yaml:"title"`
	CurID     int64  `yaml:"cur_id"`
	ThisOldID int64  `yaml:"this_oldid"`
	LogID     int64  `yaml:"log_id"`
	Deleted   int    `yaml:"deleted"`
}
