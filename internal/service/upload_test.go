package service_test

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retinalab/retina-dashboard/internal/artifact"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const user = "user-1"

func pngFile(name string) service.FileUpload {
	return service.FileUpload{FileName: name, ContentType: "image/png", Content: strings.NewReader("\x89PNG fake image")}
}

func xlsxContent() []byte {
	f := excelize.NewFile()
	defer f.Close()
	Expect(f.SetCellValue("Sheet1", "A1", "time_ms")).To(Succeed())
	Expect(f.SetCellValue("Sheet1", "B1", "amplitude_uv")).To(Succeed())
	buf, err := f.WriteToBuffer()
	Expect(err).To(BeNil())
	return buf.Bytes()
}

var _ = Describe("upload service", Ordered, func() {
	var (
		s         store.Store
		gormdb    *gorm.DB
		cleanup   func()
		artifacts *artifact.MemoryStore
		svc       *service.UploadService
		ctx       = context.TODO()
	)

	BeforeAll(func() {
		gormdb, cleanup = newSqliteDB()
		s = store.NewStore(gormdb)
	})

	AfterAll(func() {
		cleanup()
	})

	BeforeEach(func() {
		artifacts = artifact.NewMemoryStore()
		engine := newEngine(s, audit.NewRecorder(s.Audit()))
		svc = service.NewUploadService(s, artifacts, engine, audit.NewRecorder(s.Audit()))
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM uploads;")
		gormdb.Exec("DELETE FROM audit_events;")
	})

	Context("upload", func() {
		It("stores a fundus image as pending", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())
			Expect(upload.Status).To(Equal(model.StatusPending))
			Expect(upload.ArtifactURL).To(HavePrefix("memory://artifacts/user-1/fundus/"))

			content, found := artifacts.Get(upload.ArtifactURL)
			Expect(found).To(BeTrue())
			Expect(string(content)).To(Equal("\x89PNG fake image"))
			Expect(countAudit(gormdb, string(audit.UploadFundusImage))).To(BeNumerically("==", 1))
		})

		It("rejects a non image fundus upload", func() {
			_, err := svc.Upload(ctx, user, model.ModalityFundus, service.FileUpload{
				FileName: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("hello"),
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrUnsupportedFile{}))
		})

		It("rejects an oversized fundus image", func() {
			_, err := svc.Upload(ctx, user, model.ModalityFundus, service.FileUpload{
				FileName: "big.png", ContentType: "image/png",
				Content: bytes.NewReader(make([]byte, service.MaxFundusSize+1)),
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFileTooLarge{}))

			uploads, err := s.Upload().List(ctx, store.NewUploadQueryFilter(), nil)
			Expect(err).To(BeNil())
			Expect(uploads).To(BeEmpty())
		})

		It("accepts erg recordings by extension", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "run.CSV", ContentType: "text/csv", Content: strings.NewReader("t,v\n0,1\n"),
			})
			Expect(err).To(BeNil())
			Expect(upload.Modality).To(Equal(model.ModalityErg))

			_, err = svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "run.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF"),
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrUnsupportedFile{}))
		})

		It("validates erg workbooks", func() {
			_, err := svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "run.xlsx", Content: bytes.NewReader(xlsxContent()),
			})
			Expect(err).To(BeNil())

			_, err = svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "broken.xlsx", Content: strings.NewReader("not a workbook"),
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFileCorrupted{}))
		})

		It("rejects empty files", func() {
			_, err := svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "empty.txt", Content: strings.NewReader(""),
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))
		})
	})

	Context("process", func() {
		It("processes an owned record", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())

			ack, err := svc.Process(ctx, user, model.ModalityFundus, upload.ID)
			Expect(err).To(BeNil())
			Expect(ack.Started).To(BeTrue())

			got, err := svc.Get(ctx, user, model.ModalityFundus, upload.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusCompleted))
			Expect(got.QualityScore).NotTo(BeNil())
			Expect(countAudit(gormdb, string(audit.ViewFundusImage))).To(BeNumerically("==", 1))
		})

		It("reports a conflict for a finished record", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())
			_, err = svc.Process(ctx, user, model.ModalityFundus, upload.ID)
			Expect(err).To(BeNil())

			_, err = svc.Process(ctx, user, model.ModalityFundus, upload.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrProcessingConflict{}))
		})

		It("hides records of other users", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())

			_, err = svc.Process(ctx, "user-2", model.ModalityFundus, upload.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
			_, err = svc.Get(ctx, "user-2", model.ModalityFundus, upload.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("reports unknown records as not found", func() {
			_, err := svc.Process(ctx, user, model.ModalityErg, uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("list", func() {
		It("lists owned records of one modality", func() {
			_, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("a.png"))
			Expect(err).To(BeNil())
			_, err = svc.Upload(ctx, user, model.ModalityFundus, pngFile("b.png"))
			Expect(err).To(BeNil())
			_, err = svc.Upload(ctx, "user-2", model.ModalityFundus, pngFile("c.png"))
			Expect(err).To(BeNil())

			uploads, err := svc.List(ctx, user, model.ModalityFundus, "")
			Expect(err).To(BeNil())
			Expect(uploads).To(HaveLen(2))

			uploads, err = svc.List(ctx, user, model.ModalityFundus, "completed")
			Expect(err).To(BeNil())
			Expect(uploads).To(BeEmpty())

			_, err = svc.List(ctx, user, model.ModalityFundus, "done")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))
		})
	})

	Context("delete", func() {
		It("deletes by url and removes the artifact", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())

			Expect(svc.Delete(ctx, user, model.ModalityFundus, service.DeleteForm{URL: upload.ArtifactURL})).To(Succeed())

			_, err = s.Upload().Get(ctx, upload.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
			_, found := artifacts.Get(upload.ArtifactURL)
			Expect(found).To(BeFalse())
			Expect(countAudit(gormdb, string(audit.DeleteFundusImage))).To(BeNumerically("==", 1))
		})

		It("deletes by record id", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityErg, service.FileUpload{
				FileName: "run.txt", Content: strings.NewReader("0 1"),
			})
			Expect(err).To(BeNil())

			Expect(svc.Delete(ctx, user, model.ModalityErg, service.DeleteForm{RecordID: &upload.ID})).To(Succeed())
		})

		It("does not delete records of other users", func() {
			upload, err := svc.Upload(ctx, user, model.ModalityFundus, pngFile("left.png"))
			Expect(err).To(BeNil())

			err = svc.Delete(ctx, "user-2", model.ModalityFundus, service.DeleteForm{URL: upload.ArtifactURL})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			_, found := artifacts.Get(upload.ArtifactURL)
			Expect(found).To(BeTrue())
		})

		It("requires a url or a record id", func() {
			err := svc.Delete(ctx, user, model.ModalityFundus, service.DeleteForm{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))
		})
	})
})
