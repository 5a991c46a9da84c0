package v1

import (
	"net/http"

	"kairaba-backend/pkg/logger"
	"kairaba-backend/pkg/storage"
	"kairaba-backend/pkg/utils"
)

// UploadHandler accepts product image uploads, converts them to WebP and
// stores them on R2.
type UploadHandler struct {
	storage       *storage.R2Storage
	maxUploadSize int64 // bytes
}

func NewUploadHandler(storage *storage.R2Storage, maxUploadSizeMB int64) *UploadHandler {
	return &UploadHandler{
		storage:       storage,
		maxUploadSize: maxUploadSizeMB << 20,
	}
}

func (h *UploadHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !utils.IsImage(contentType) {
		utils.WriteError(w, http.StatusUnsupportedMediaType, "only image uploads are supported")
		return
	}

	data, processedType, err := utils.ProcessImage(file, header.Filename)
	if err != nil {
		logger.WithContext(r.Context()).Warn().Err(err).Str("filename", header.Filename).Msg("Image processing failed")
		utils.WriteError(w, http.StatusUnprocessableEntity, "could not process image")
		return
	}

	url, err := h.storage.UploadBuffer(r.Context(), data, processedType)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{"url": url})
}
