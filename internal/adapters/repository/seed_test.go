package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/audiomatch/internal/adapters/repository"
	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/validation"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultSeed(t *testing.T) {
	Convey("Given the bundled seed", t, func() {
		list, err := repository.DefaultSeed()
		So(err, ShouldBeNil)

		Convey("Then every category is represented and every entry is valid", func() {
			seen := map[model.Category]int{}
			ids := map[string]bool{}
			for i := range list {
				c := list[i]
				So(validation.ValidateStruct(&c), ShouldBeNil)
				So(ids[c.ID], ShouldBeFalse)
				ids[c.ID] = true
				seen[c.Category]++
			}
			for _, c := range model.AllCategories() {
				So(seen[c], ShouldBeGreaterThan, 0)
			}
		})
	})
}

func TestDecodeComponents(t *testing.T) {
	Convey("Given component JSON", t, func() {
		Convey("When categories use aliases", func() {
			list, err := repository.DecodeComponents(strings.NewReader(`[{"id":"a","brand":"B","name":"N","category":"Headphones"},{"id":"b","brand":"B","name":"N","category":"combo"}]`))
			So(err, ShouldBeNil)
			So(list[0].Category, ShouldEqual, model.CategoryHeadphone)
			So(list[1].Category, ShouldEqual, model.CategoryDACAmp)
		})

		Convey("When a category is unknown", func() {
			_, err := repository.DecodeComponents(strings.NewReader(`[{"id":"a","brand":"B","name":"N","category":"turntable"}]`))
			So(errors.Is(err, repository.ErrInvalidComponent), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnknownCategory), ShouldBeTrue)
		})

		Convey("When a field is unknown", func() {
			_, err := repository.DecodeComponents(strings.NewReader(`[{"id":"a","brand":"B","name":"N","category":"amp","colour":"red"}]`))
			So(err, ShouldNotBeNil)
		})

		Convey("When the document is not an array", func() {
			_, err := repository.DecodeComponents(strings.NewReader(`{"id":"a"}`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given backend names", t, func() {
		ctx := context.Background()

		mem, err := repository.Open(ctx, repository.BackendMemory, "")
		So(err, ShouldBeNil)
		So(mem.Close(), ShouldBeNil)

		db, err := repository.Open(ctx, repository.BackendSQLite, filepath.Join(t.TempDir(), "c.db"))
		So(err, ShouldBeNil)
		So(db.Close(), ShouldBeNil)

		_, err = repository.Open(ctx, "postgres", "")
		So(errors.Is(err, repository.ErrUnknownBackend), ShouldBeTrue)
	})
}
