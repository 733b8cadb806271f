package store

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"
)

var _ = Describe("statement metrics", func() {
	DescribeTable("classifies statements by table and verb",
		func(query, table, verb string) {
			gotTable, gotVerb := classify(query)
			Expect(gotTable).To(Equal(table))
			Expect(gotVerb).To(Equal(verb))
		},
		Entry("upload status transition", `UPDATE "uploads" SET "status"=$1,"processing_started_at"=$2 WHERE id = $3 AND status = $4`, "uploads", "update"),
		Entry("analysis insert", `INSERT INTO "analyses" ("id","owner_id") VALUES ($1,$2) RETURNING *`, "analyses", "insert"),
		Entry("audit read", `SELECT * FROM "audit_events" WHERE action = $1`, "audit_events", "select"),
		Entry("job fetch", `select * from river_job where state = 'available'`, "river_job", "select"),
		Entry("upload delete", `DELETE FROM "uploads" WHERE "uploads"."id" = $1`, "uploads", "delete"),
		Entry("server version", `SELECT version()`, "other", "select"),
		Entry("empty statement", ``, "other", "unknown"),
	)

	It("counts statements with their result", func() {
		count := func(result string) float64 {
			m := &dto.Metric{}
			Expect(dbQueryTotal.WithLabelValues("analyses", "update", result).Write(m)).To(Succeed())
			return m.GetCounter().GetValue()
		}
		ok, failed := count("ok"), count("error")

		mi := &metricInterceptor{}
		table, verb := classify(`UPDATE "analyses" SET "status"=$1 WHERE id = $2`)
		mi.measure(table, verb, time.Now(), nil)
		mi.measure(table, verb, time.Now(), errors.New("conflict"))

		Expect(count("ok")).To(Equal(ok + 1))
		Expect(count("error")).To(Equal(failed + 1))
	})
})
