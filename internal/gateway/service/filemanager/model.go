package filemanager

import "time"

// Request is the JSON body the file-manager widget posts for every action.
type Request struct {
	Action          string      `json:"action"`
	Path            string      `json:"path"`
	TargetPath      string      `json:"targetPath,omitempty"`
	Names           []string    `json:"names,omitempty"`
	RenameFiles     []string    `json:"renameFiles,omitempty"`
	SearchString    string      `json:"searchString,omitempty"`
	CaseSensitive   bool        `json:"caseSensitive,omitempty"`
	ShowHiddenItems bool        `json:"showHiddenItems,omitempty"`
	Data            []FileEntry `json:"data,omitempty"`
}

type FileEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	IsFile       bool      `json:"isFile"`
	HasChild     bool      `json:"hasChild"`
	Type         string    `json:"type"`
	FilterPath   string    `json:"filterPath"`
	DateModified time.Time `json:"dateModified"`
	DateCreated  time.Time `json:"dateCreated"`
}

type Details struct {
	Name          string    `json:"name"`
	Location      string    `json:"location"`
	Size          string    `json:"size"`
	IsFile        bool      `json:"isFile"`
	Modified      time.Time `json:"modified"`
	MultipleFiles bool      `json:"multipleFiles"`
}

type ErrorDetails struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	FileExists []string `json:"fileExists,omitempty"`
}

// Response mirrors the widget's expected envelope; only the fields relevant
// to the action are set.
type Response struct {
	CWD     *FileEntry    `json:"cwd,omitempty"`
	Files   []FileEntry   `json:"files,omitempty"`
	Details *Details      `json:"details,omitempty"`
	Error   *ErrorDetails `json:"error,omitempty"`
}

// DownloadRequest is the JSON carried in the downloadInput form field.
type DownloadRequest struct {
	Path  string      `json:"path"`
	Names []string    `json:"names"`
	Data  []FileEntry `json:"data,omitempty"`
}

// Archive is the payload of a download: a single file, or a zip when more
// than one file or a folder was selected.
type Archive struct {
	Name        string
	ContentType string
	Content     []byte
}

func errorResponse(code, message string) *Response {
	return &Response{Error: &ErrorDetails{Code: code, Message: message}}
}
