package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"examcal/internal/apperr"
	"examcal/internal/ics"
	appLog "examcal/internal/log"
	"examcal/internal/model"
	"examcal/internal/sheet"
	"examcal/internal/store"
)

const maxGenerateBody = 1 << 20

type clientSheet struct {
	FileData string `json:"fileData"`
	FileName string `json:"fileName"`
}

type searchRequest struct {
	ClassID  string       `json:"classId"`
	ExamData *clientSheet `json:"examData,omitempty"`
}

type searchResponse struct {
	Success bool               `json:"success"`
	Data    []model.ExamRecord `json:"data"`
}

// handleSearch returns the exams of one class, either from the server
// spreadsheet or from a base64 workbook sent by the client.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	// base64 inflates the upload by a third.
	limit := s.cfg.Upload.MaxBytes*4/3 + 64<<10
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	classID, err := sheet.NormalizeClassID(req.ClassID)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	filter := sheet.Filter{ClassID: classID, Strict: s.cfg.Spreadsheet.Strict}

	var (
		table   *sheet.Table
		records []model.ExamRecord
	)
	if req.ExamData != nil && req.ExamData.FileData != "" {
		data, derr := decodeFileData(req.ExamData.FileData)
		if derr != nil {
			writeAppError(w, r, derr, "")
			return
		}
		table, err = sheet.ReadWorkbook(data, s.readOptions())
		if err == nil {
			records = s.extractor.Search(table, filter)
		}
	} else {
		table, records, err = s.repo.Search(s.extractor, filter)
	}
	if err != nil {
		writeAppError(w, r, err, "查询考试信息失败，请重试")
		return
	}

	appLog.Info("search",
		"class_id", classID,
		"client_file", req.ExamData != nil && req.ExamData.FileData != "",
		"header_row", table.HeaderRow,
		"class_column", table.Columns.Class,
		"time_column", table.Columns.ExamTime,
		"room_column", table.Columns.ExamRoom,
		"matches", len(records),
	)

	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "未找到该行政班ID对应的考试信息")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Success: true, Data: records})
}

func (s *Server) readOptions() sheet.ReadOptions {
	return sheet.ReadOptions{HeaderRow: s.cfg.Spreadsheet.HeaderRow}
}

// decodeFileData accepts plain base64 or a data: URL.
func decodeFileData(v string) ([]byte, error) {
	if i := strings.Index(v, ";base64,"); i >= 0 && strings.HasPrefix(v, "data:") {
		v = v[i+len(";base64,"):]
	}
	v = strings.TrimSpace(v)
	data, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(v, "="))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "上传的考试安排表无法解析", err)
	}
	return data, nil
}

type generateRequest struct {
	ExamData json.RawMessage `json:"examData"`
	Client   string          `json:"client,omitempty"`
	Response string          `json:"response,omitempty"`
}

type linkResponse struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId"`
	DownloadURL string `json:"downloadUrl"`
}

// handleGenerate encodes the posted records as one calendar. The batch
// either encodes completely or fails.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxGenerateBody)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "考试数据解析失败")
		return
	}

	records, err := parseExamData(req.ExamData)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}

	hint := req.Client
	if hint == "" {
		hint = r.URL.Query().Get("client")
	}
	profile := ics.DetectProfile(r.UserAgent(), hint)

	events, err := s.builder.BuildAll(records)
	if err != nil {
		writeAppError(w, r, err, "生成ICS文件失败")
		return
	}
	doc, err := s.encoder.Encode(events, profile)
	if err != nil {
		writeAppError(w, r, err, "生成ICS文件失败")
		return
	}

	inline := profile == ics.ProfileIOS
	asLink := strings.EqualFold(req.Response, "link")

	var fileID string
	if s.store != nil {
		fileID, err = s.store.Put(r.Context(), store.File{Name: "exams.ics", Body: doc.Body, Inline: inline})
		if err != nil {
			if asLink {
				writeAppError(w, r, err, "生成ICS文件失败")
				return
			}
			appLog.Error("store generated calendar failed", err)
			fileID = ""
		}
	} else if asLink {
		writeError(w, http.StatusInternalServerError, "下载链接不可用")
		return
	}

	appLog.Info("calendar generated",
		"events", doc.Events,
		"profile", profile,
		"bytes", doc.ContentLength(),
		"file_id", fileID,
	)

	if asLink {
		writeJSON(w, http.StatusOK, linkResponse{
			Success:     true,
			FileID:      fileID,
			DownloadURL: "/download-ics/" + fileID,
		})
		return
	}
	writeCalendar(w, doc.Body, inline, fileID)
}

// parseExamData accepts the records as a JSON array or as a string holding
// a JSON array.
func parseExamData(raw json.RawMessage) ([]model.ExamRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, apperr.New(apperr.Validation, "考试数据格式错误")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, apperr.Wrap(apperr.Validation, "考试数据解析失败", err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, apperr.New(apperr.Validation, "考试数据格式错误")
	}

	var records []model.ExamRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "考试数据解析失败", err)
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.Validation, "考试数据格式错误")
	}
	return records, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "文件不存在或已过期")
		return
	}
	f, err := s.store.Get(r.Context(), chi.URLParam(r, "fileId"))
	if err != nil {
		writeAppError(w, r, err, "下载文件失败")
		return
	}
	writeCalendar(w, f.Body, f.Inline, "")
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Sheet   string `json:"sheet"`
	Rows    int    `json:"rows"`
}

var spreadsheetMIMEMarkers = []string{"excel", "spreadsheetml"}

// handleUpload replaces the server spreadsheet.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Upload.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "文件大小超过限制")
			return
		}
		writeError(w, http.StatusBadRequest, "请上传Excel文件")
		return
	}

	file, header, err := r.FormFile("excel")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "请上传Excel文件")
		return
	}
	defer file.Close()

	mime := strings.ToLower(header.Header.Get("Content-Type"))
	accepted := false
	for _, m := range spreadsheetMIMEMarkers {
		if strings.Contains(mime, m) {
			accepted = true
		}
	}
	if !accepted {
		writeError(w, http.StatusBadRequest, "只支持Excel文件")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeAppError(w, r, err, "文件上传失败")
		return
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusBadRequest, "文件大小超过限制")
		return
	}

	table, err := s.repo.Replace(data)
	if err != nil {
		writeAppError(w, r, err, "文件上传失败")
		return
	}

	appLog.Info("spreadsheet uploaded", "file_name", header.Filename, "bytes", len(data), "rows", len(table.Rows))
	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "考试安排表已更新",
		Sheet:   table.Sheet,
		Rows:    len(table.Rows),
	})
}
