package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/artifact"
	"github.com/retinalab/retina-dashboard/internal/assistant"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/auth"
	v1 "github.com/retinalab/retina-dashboard/internal/handlers/v1"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/pkg/middleware"
	"gorm.io/gorm"
)

var secret = []byte("handler-test-secret")

func token(userID string) string {
	t, err := auth.GenerateLocalToken(secret, auth.User{ID: userID, Username: userID}, time.Hour)
	Expect(err).To(BeNil())
	return t
}

var _ = Describe("api v1 handlers", Ordered, func() {
	var (
		gormdb  *gorm.DB
		cleanup func()
		server  *httptest.Server
		alice   string
		bob     string
	)

	do := func(method, path, bearer string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, server.URL+path, body)
		Expect(err).To(BeNil())
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		return resp
	}

	doJSON := func(method, path, bearer string, payload any) *http.Response {
		body, err := json.Marshal(payload)
		Expect(err).To(BeNil())
		return do(method, path, bearer, bytes.NewReader(body), "application/json")
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	upload := func(path, bearer, fileName, contentType string, content []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		Expect(err).To(BeNil())
		_, err = part.Write(content)
		Expect(err).To(BeNil())
		Expect(mw.Close()).To(Succeed())
		return do(http.MethodPost, path, bearer, &buf, mw.FormDataContentType())
	}

	uploadAndProcess := func(modality string) string {
		fileName, contentType := "eye.png", "image/png"
		if modality == "erg" {
			fileName, contentType = "run.csv", "text/csv"
		}
		resp := upload("/api/v1/"+modality+"/upload", alice, fileName, contentType, []byte("content"))
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var reply api.UploadReply
		decode(resp, &reply)

		resp = doJSON(http.MethodPost, "/api/v1/"+modality+"/process", alice, api.ProcessRequest{RecordId: reply.RecordId})
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		resp.Body.Close()
		return reply.RecordId
	}

	BeforeAll(func() {
		gormdb, cleanup = newSqliteDB()
		s := store.NewStore(gormdb)

		recorder := audit.NewRecorder(s.Audit())
		engine := newEngine(s, recorder)
		handler := v1.NewServiceHandler(
			service.NewUploadService(s, artifact.NewMemoryStore(), engine, recorder),
			service.NewAnalysisService(s, engine, recorder, service.NewReportService()),
			service.NewConsentService(recorder),
			service.NewChatService(s, assistant.NewKeyword()),
		)

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		router.Route("/api/v1", func(r chi.Router) {
			r.Use(auth.NewLocalAuthenticator(secret).Authenticator)
			handler.Routes(r)
		})
		server = httptest.NewServer(router)

		alice = token("alice")
		bob = token("bob")
	})

	AfterAll(func() {
		server.Close()
		cleanup()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM analyses;")
		gormdb.Exec("DELETE FROM uploads;")
		gormdb.Exec("DELETE FROM audit_events;")
	})

	It("rejects requests without a token", func() {
		resp := do(http.MethodGet, "/api/v1/fundus", "", nil, "")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		var reply api.ErrorReply
		decode(resp, &reply)
		Expect(reply.Error).To(Equal("Unauthorized"))
	})

	Context("records", func() {
		It("uploads, processes and reads a fundus image", func() {
			id := uploadAndProcess("fundus")

			resp := do(http.MethodGet, "/api/v1/fundus/"+id, alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var record api.Record
			decode(resp, &record)
			Expect(record.Status).To(Equal(api.StatusCompleted))
			Expect(record.QualityScore).NotTo(BeNil())
			Expect(string(record.ExtractedFeatures)).To(ContainSubstring("optic_disc_detected"))

			resp = do(http.MethodGet, "/api/v1/fundus?status=completed", alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var list api.RecordList
			decode(resp, &list)
			Expect(list).To(HaveLen(1))
		})

		It("accepts the imageId alias", func() {
			resp := upload("/api/v1/fundus/upload", alice, "eye.png", "image/png", []byte("content"))
			var reply api.UploadReply
			decode(resp, &reply)
			Expect(reply.Status).To(Equal(api.StatusPending))

			resp = doJSON(http.MethodPost, "/api/v1/fundus/process", alice, map[string]string{"imageId": reply.RecordId})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			var processed api.ProcessReply
			decode(resp, &processed)
			Expect(processed.Success).To(BeTrue())
		})

		It("rejects a process request without id", func() {
			resp := doJSON(http.MethodPost, "/api/v1/erg/process", alice, map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var reply api.ErrorReply
			decode(resp, &reply)
			Expect(reply.Error).To(Equal("Record ID required"))
			Expect(reply.RequestId).NotTo(BeNil())
		})

		It("reports a conflict when processing twice", func() {
			id := uploadAndProcess("erg")
			resp := doJSON(http.MethodPost, "/api/v1/erg/process", alice, api.ProcessRequest{ErgId: id})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()
		})

		It("rejects unsupported files", func() {
			resp := upload("/api/v1/erg/upload", alice, "run.pdf", "application/pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()

			resp = do(http.MethodPost, "/api/v1/fundus/upload", alice, bytes.NewReader([]byte("x")), "text/plain")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("hides records of other users", func() {
			id := uploadAndProcess("fundus")

			resp := do(http.MethodGet, "/api/v1/fundus/"+id, bob, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()

			resp = doJSON(http.MethodDelete, "/api/v1/fundus/delete", bob, api.DeleteRequest{RecordId: id})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("deletes by url", func() {
			resp := upload("/api/v1/erg/upload", alice, "run.txt", "text/plain", []byte("1 2 3"))
			var reply api.UploadReply
			decode(resp, &reply)

			resp = doJSON(http.MethodDelete, "/api/v1/erg/delete", alice, api.DeleteRequest{Url: reply.Url})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var deleted api.SuccessReply
			decode(resp, &deleted)
			Expect(deleted.Success).To(BeTrue())

			resp = doJSON(http.MethodDelete, "/api/v1/erg/delete", alice, api.DeleteRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var failed api.ErrorReply
			decode(resp, &failed)
			Expect(failed.Error).To(Equal("No URL provided"))
		})
	})

	Context("analysis", func() {
		It("requires both ids", func() {
			resp := doJSON(http.MethodPost, "/api/v1/analysis/multimodal", alice, api.MultimodalRequest{FundusId: uploadAndProcess("fundus")})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var reply api.ErrorReply
			decode(resp, &reply)
			Expect(reply.Error).To(Equal("Both fundus ID and ERG ID required"))
		})

		It("requires processed inputs", func() {
			fundus := uploadAndProcess("fundus")
			resp := upload("/api/v1/erg/upload", alice, "run.csv", "text/csv", []byte("t,v"))
			var erg api.UploadReply
			decode(resp, &erg)

			resp = doJSON(http.MethodPost, "/api/v1/analysis/multimodal", alice, api.MultimodalRequest{FundusId: fundus, ErgId: erg.RecordId})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var reply api.ErrorReply
			decode(resp, &reply)
			Expect(reply.Error).To(Equal("selected data not found or not processed"))

			resp = do(http.MethodGet, "/api/v1/analysis", alice, nil, "")
			var list api.AnalysisList
			decode(resp, &list)
			Expect(list).To(BeEmpty())
		})

		It("runs an analysis and downloads its report", func() {
			resp := doJSON(http.MethodPost, "/api/v1/analysis/multimodal", alice, api.MultimodalRequest{
				FundusId: uploadAndProcess("fundus"),
				ErgId:    uploadAndProcess("erg"),
			})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			var started api.MultimodalReply
			decode(resp, &started)
			Expect(started.Success).To(BeTrue())
			Expect(started.Message).To(Equal("Multimodal analysis started"))

			resp = do(http.MethodGet, "/api/v1/analysis/"+started.AnalysisId, alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var analysis api.Analysis
			decode(resp, &analysis)
			Expect(analysis.Status).To(Equal(api.StatusCompleted))
			Expect(*analysis.ColorBlindnessType).To(Equal("Protanopia"))
			Expect(string(analysis.AnalysisDetails)).To(ContainSubstring("model_versions"))

			resp = do(http.MethodGet, "/api/v1/analysis/"+started.AnalysisId+"/report", alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("attachment"))
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/v1/analysis/"+started.AnalysisId+"/report?format=pdf", alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/v1/analysis/"+started.AnalysisId, bob, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/v1/export", alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var export api.Export
			decode(resp, &export)
			Expect(export.Analyses).To(HaveLen(1))
		})
	})

	Context("consent and chat", func() {
		It("requires the mandatory consents", func() {
			resp := doJSON(http.MethodPost, "/api/v1/consent", alice, api.ConsentRequest{Hipaa: true})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()

			resp = doJSON(http.MethodPost, "/api/v1/consent", alice, api.ConsentRequest{Hipaa: true, DataProcessing: true, AiAnalysis: true})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			resp = do(http.MethodDelete, "/api/v1/consent", alice, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
		})

		It("answers chat messages", func() {
			resp := doJSON(http.MethodPost, "/api/v1/chat", alice, api.ChatRequest{Message: "tell me about fundus photos"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var reply api.ChatReply
			decode(resp, &reply)
			Expect(reply.Message).To(ContainSubstring("optic disc"))

			resp = doJSON(http.MethodPost, "/api/v1/chat", alice, api.ChatRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var failed api.ErrorReply
			decode(resp, &failed)
			Expect(failed.Error).To(Equal("Message is required"))
		})
	})
})
