package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"gorm.io/gorm"
)

func newUpload(owner string, modality model.Modality) model.Upload {
	id := uuid.New()
	return model.Upload{
		ID:          id,
		OwnerID:     owner,
		Modality:    modality,
		FileName:    "scan.png",
		ContentType: "image/png",
		Size:        1024,
		ArtifactURL: "http://artifacts/" + owner + "/" + id.String(),
	}
}

var _ = Describe("upload store", Ordered, func() {
	var (
		s       store.Store
		gormdb  *gorm.DB
		cleanup func()
	)

	BeforeAll(func() {
		gormdb, cleanup = newSqliteDB()
		s = store.NewStore(gormdb)
	})

	AfterAll(func() {
		cleanup()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM uploads;")
	})

	Context("create", func() {
		It("creates a pending upload", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())
			Expect(created.Status).To(Equal(model.StatusPending))

			got, err := s.Upload().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.OwnerID).To(Equal("user-1"))
			Expect(got.QualityScore).To(BeNil())
			Expect(got.ExtractedFeatures).To(BeNil())
			Expect(got.ProcessedAt).To(BeNil())
		})

		It("rejects a duplicated artifact url", func() {
			u := newUpload("user-1", model.ModalityErg)
			_, err := s.Upload().Create(context.TODO(), u)
			Expect(err).To(BeNil())

			u.ID = uuid.New()
			_, err = s.Upload().Create(context.TODO(), u)
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("returns not found", func() {
			_, err := s.Upload().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("filters by owner, modality and status", func() {
			for _, u := range []model.Upload{
				newUpload("user-1", model.ModalityFundus),
				newUpload("user-1", model.ModalityFundus),
				newUpload("user-1", model.ModalityErg),
				newUpload("user-2", model.ModalityFundus),
			} {
				_, err := s.Upload().Create(context.TODO(), u)
				Expect(err).To(BeNil())
			}

			uploads, err := s.Upload().List(context.TODO(), store.NewUploadQueryFilter().ByOwner("user-1").ByModality(model.ModalityFundus), nil)
			Expect(err).To(BeNil())
			Expect(uploads).To(HaveLen(2))

			uploads, err = s.Upload().List(context.TODO(), store.NewUploadQueryFilter().ByStatus(model.StatusCompleted), nil)
			Expect(err).To(BeNil())
			Expect(uploads).To(BeEmpty())

			uploads, err = s.Upload().List(context.TODO(), store.NewUploadQueryFilter(), store.NewQueryOptions().WithLimit(3))
			Expect(err).To(BeNil())
			Expect(uploads).To(HaveLen(3))
		})
	})

	Context("lifecycle", func() {
		It("moves pending to processing once", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())

			started, err := s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(BeNil())
			Expect(started).To(BeTrue())

			started, err = s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(BeNil())
			Expect(started).To(BeFalse())

			got, err := s.Upload().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusProcessing))
			Expect(got.ProcessingStartedAt).ToNot(BeNil())
		})

		It("completes a processing upload in one update", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityErg))
			Expect(err).To(BeNil())
			_, err = s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(BeNil())

			features := model.Features{Erg: &model.ErgFeatures{AWaveAmplitude: 100, BWaveAmplitude: 300}}
			Expect(s.Upload().Complete(context.TODO(), created.ID, 0.85, features, time.Now().UTC())).To(Succeed())

			got, err := s.Upload().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusCompleted))
			Expect(*got.QualityScore).To(Equal(0.85))
			Expect(got.ExtractedFeatures).ToNot(BeNil())
			Expect(got.ExtractedFeatures.Data.Erg).ToNot(BeNil())
			Expect(got.ExtractedFeatures.Data.Erg.BWaveAmplitude).To(Equal(300.0))
			Expect(got.ProcessedAt).ToNot(BeNil())
		})

		It("fails a processing upload without scoring fields", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())
			_, err = s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(BeNil())

			Expect(s.Upload().Fail(context.TODO(), created.ID, "x", time.Now().UTC())).To(Succeed())

			got, err := s.Upload().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.StatusFailed))
			Expect(got.QualityScore).To(BeNil())
			Expect(got.ExtractedFeatures).To(BeNil())
			Expect(*got.FailureReason).To(Equal("x"))
		})

		It("refuses to finalize an upload that is not processing", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())

			err = s.Upload().Complete(context.TODO(), created.ID, 0.9, model.Features{Fundus: &model.FundusFeatures{}}, time.Now().UTC())
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			_, err = s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(BeNil())
			Expect(s.Upload().Fail(context.TODO(), created.ID, "x", time.Now().UTC())).To(Succeed())

			err = s.Upload().Fail(context.TODO(), created.ID, "again", time.Now().UTC())
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			_, err = s.Upload().MarkProcessing(context.TODO(), created.ID, time.Now().UTC())
			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})

		It("reports not found when finalizing an unknown upload", func() {
			err := s.Upload().Fail(context.TODO(), uuid.New(), "x", time.Now().UTC())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("lists uploads stuck in processing", func() {
			old, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())
			recent, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())

			now := time.Now().UTC()
			_, err = s.Upload().MarkProcessing(context.TODO(), old.ID, now.Add(-time.Hour))
			Expect(err).To(BeNil())
			_, err = s.Upload().MarkProcessing(context.TODO(), recent.ID, now)
			Expect(err).To(BeNil())

			stuck, err := s.Upload().ListStuck(context.TODO(), now.Add(-10*time.Minute))
			Expect(err).To(BeNil())
			Expect(stuck).To(HaveLen(1))
			Expect(stuck[0].ID).To(Equal(old.ID))
		})
	})

	Context("delete", func() {
		It("deletes an upload", func() {
			created, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())

			Expect(s.Upload().Delete(context.TODO(), created.ID)).To(Succeed())

			count := 0
			Expect(gormdb.Raw("SELECT COUNT(*) FROM uploads;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))

			Expect(s.Upload().Delete(context.TODO(), created.ID)).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("snapshot", func() {
		It("reads committed rows through the snapshot context", func() {
			_, err := s.Upload().Create(context.TODO(), newUpload("user-1", model.ModalityFundus))
			Expect(err).To(BeNil())

			var uploads model.UploadList
			err = s.Snapshot(context.TODO(), func(ctx context.Context) error {
				Expect(store.FromContext(ctx)).NotTo(BeNil())
				uploads, err = s.Upload().List(ctx, store.NewUploadQueryFilter().ByOwner("user-1"), nil)
				return err
			})
			Expect(err).To(BeNil())
			Expect(uploads).To(HaveLen(1))
		})

		It("reuses the outer transaction when nested", func() {
			err := s.Snapshot(context.TODO(), func(outer context.Context) error {
				return s.Snapshot(outer, func(inner context.Context) error {
					Expect(store.FromContext(inner)).To(BeIdenticalTo(store.FromContext(outer)))
					return nil
				})
			})
			Expect(err).To(BeNil())
		})

		It("returns the error of the callback", func() {
			failure := errors.New("boom")
			err := s.Snapshot(context.TODO(), func(ctx context.Context) error {
				return failure
			})
			Expect(err).To(MatchError(failure))
			Expect(store.FromContext(context.TODO())).To(BeNil())
		})
	})
})
