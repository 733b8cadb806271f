package service_test

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retinalab/retina-dashboard/internal/artifact"
	"github.com/retinalab/retina-dashboard/internal/assistant"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("analysis service", Ordered, func() {
	var (
		s        store.Store
		gormdb   *gorm.DB
		cleanup  func()
		uploads  *service.UploadService
		svc      *service.AnalysisService
		consents *service.ConsentService
		chat     *service.ChatService
		ctx      = context.TODO()
	)

	processed := func(owner string, modality model.Modality) *model.Upload {
		file := pngFile("eye.png")
		if modality == model.ModalityErg {
			file = service.FileUpload{FileName: "run.csv", Content: strings.NewReader("t,v\n0,1\n")}
		}
		u, err := uploads.Upload(ctx, owner, modality, file)
		Expect(err).To(BeNil())
		_, err = uploads.Process(ctx, owner, modality, u.ID)
		Expect(err).To(BeNil())
		return u
	}

	BeforeAll(func() {
		gormdb, cleanup = newSqliteDB()
		s = store.NewStore(gormdb)

		recorder := audit.NewRecorder(s.Audit())
		engine := newEngine(s, recorder)
		uploads = service.NewUploadService(s, artifact.NewMemoryStore(), engine, recorder)
		svc = service.NewAnalysisService(s, engine, recorder, service.NewReportService())
		consents = service.NewConsentService(recorder)
		chat = service.NewChatService(s, assistant.NewKeyword())
	})

	AfterAll(func() {
		cleanup()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM analyses;")
		gormdb.Exec("DELETE FROM uploads;")
		gormdb.Exec("DELETE FROM audit_events;")
	})

	Context("start", func() {
		It("runs an analysis over two processed records", func() {
			fundus := processed(user, model.ModalityFundus)
			erg := processed(user, model.ModalityErg)

			analysis, err := svc.Start(ctx, user, fundus.ID, erg.ID)
			Expect(err).To(BeNil())

			got, err := svc.Get(ctx, user, analysis.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusCompleted))
			Expect(*got.ColorBlindnessType).To(Equal("Protanopia"))

			Expect(countAudit(gormdb, string(audit.StartAIAnalysis))).To(BeNumerically("==", 1))
			Expect(countAudit(gormdb, string(audit.CompleteAIAnalysis))).To(BeNumerically("==", 1))
			Expect(countAudit(gormdb, string(audit.ViewAnalysisResult))).To(BeNumerically("==", 1))
		})

		It("refuses inputs that are not processed", func() {
			fundus := processed(user, model.ModalityFundus)
			erg, err := uploads.Upload(ctx, user, model.ModalityErg, service.FileUpload{FileName: "run.txt", Content: strings.NewReader("1")})
			Expect(err).To(BeNil())

			_, err = svc.Start(ctx, user, fundus.ID, erg.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrRecordNotReady{}))
			Expect(err.Error()).To(Equal("selected data not found or not processed"))

			analyses, err := svc.List(ctx, user, "")
			Expect(err).To(BeNil())
			Expect(analyses).To(BeEmpty())
		})

		It("refuses inputs of other users", func() {
			fundus := processed("user-2", model.ModalityFundus)
			erg := processed(user, model.ModalityErg)

			_, err := svc.Start(ctx, user, fundus.ID, erg.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrRecordNotReady{}))
		})
	})

	Context("read", func() {
		It("hides analyses of other users", func() {
			analysis, err := svc.Start(ctx, user, processed(user, model.ModalityFundus).ID, processed(user, model.ModalityErg).ID)
			Expect(err).To(BeNil())

			_, err = svc.Get(ctx, "user-2", analysis.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			list, err := svc.List(ctx, "user-2", "")
			Expect(err).To(BeNil())
			Expect(list).To(BeEmpty())

			list, err = svc.List(ctx, user, "completed")
			Expect(err).To(BeNil())
			Expect(list).To(HaveLen(1))
		})

		It("reports unknown analyses as not found", func() {
			_, err := svc.Get(ctx, user, uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("renders reports", func() {
			fundus := processed(user, model.ModalityFundus)
			analysis, err := svc.Start(ctx, user, fundus.ID, processed(user, model.ModalityErg).ID)
			Expect(err).To(BeNil())

			report, err := svc.Report(ctx, user, analysis.ID, service.ReportFormatCSV)
			Expect(err).To(BeNil())
			Expect(report.ContentType).To(Equal("text/csv"))
			Expect(report.FileName).To(Equal("analysis-" + analysis.ID.String() + ".csv"))
			Expect(report.Content).To(ContainSubstring("eye.png"))

			report, err = svc.Report(ctx, user, analysis.ID, service.ReportFormatJSON)
			Expect(err).To(BeNil())
			Expect(report.Content).To(ContainSubstring(`"color_blindness_type": "Protanopia"`))

			_, err = svc.Report(ctx, user, analysis.ID, service.ReportFormat("pdf"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))

			Expect(countAudit(gormdb, string(audit.DownloadReport))).To(BeNumerically("==", 2))
		})

		It("exports everything a user owns", func() {
			fundus := processed(user, model.ModalityFundus)
			_, err := svc.Start(ctx, user, fundus.ID, processed(user, model.ModalityErg).ID)
			Expect(err).To(BeNil())
			processed("user-2", model.ModalityFundus)

			export, err := svc.Export(ctx, user)
			Expect(err).To(BeNil())
			Expect(export.Fundus).To(HaveLen(1))
			Expect(export.Erg).To(HaveLen(1))
			Expect(export.Analyses).To(HaveLen(1))
			Expect(countAudit(gormdb, string(audit.ExportData))).To(BeNumerically("==", 1))
		})

		It("reads the export from a single snapshot", func() {
			snap := &snapshotStore{Store: s}
			exporter := service.NewAnalysisService(snap, nil, audit.NewRecorder(s.Audit()), service.NewReportService())

			export, err := exporter.Export(ctx, user)
			Expect(err).To(BeNil())
			Expect(snap.calls).To(Equal(1))
			Expect(snap.inTx).To(BeTrue())
			Expect(export.Fundus).To(HaveLen(1))
			Expect(export.Analyses).To(HaveLen(1))

			snap.err = errors.New("snapshot failed")
			_, err = exporter.Export(ctx, user)
			Expect(err).To(MatchError(snap.err))
			Expect(countAudit(gormdb, string(audit.ExportData))).To(BeNumerically("==", 2))
		})
	})

	Context("consent", func() {
		It("requires the mandatory consents", func() {
			err := consents.Grant(ctx, user, service.ConsentForm{Hipaa: true, DataProcessing: true})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConsentRequired{}))
			Expect(err.Error()).To(ContainSubstring("aiAnalysis"))
			Expect(countAudit(gormdb, string(audit.ConsentGranted))).To(BeNumerically("==", 0))
		})

		It("records granted and withdrawn consent", func() {
			Expect(consents.Grant(ctx, user, service.ConsentForm{Hipaa: true, DataProcessing: true, AIAnalysis: true})).To(Succeed())
			consents.Withdraw(ctx, user)

			Expect(countAudit(gormdb, string(audit.ConsentGranted))).To(BeNumerically("==", 1))
			Expect(countAudit(gormdb, string(audit.ConsentWithdrawn))).To(BeNumerically("==", 1))
		})
	})

	Context("chat", func() {
		It("answers by keyword", func() {
			reply, err := chat.Chat(ctx, user, service.ChatForm{Message: "What is an ERG?"})
			Expect(err).To(BeNil())
			Expect(reply).To(ContainSubstring("electroretinogram"))
		})

		It("requires a message", func() {
			_, err := chat.Chat(ctx, user, service.ChatForm{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))
		})
	})
})
