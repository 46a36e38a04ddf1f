package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/config"
	"github.com/okian/sensorboard/pkg/logger"
)

func TestNewHTTPServer(t *testing.T) {
	convey.Convey("Given a configuration with credentials", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.StoreDriver = "memory"
		cfg.AdminPassword = "adminpw"
		cfg.ViewerPassword = "viewpw"
		cfg.AccessLog = filepath.Join(t.TempDir(), "access.log")

		svc, err := app.Open(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer svc.Close()

		srv, closeLog, err := newHTTPServer(cfg, svc, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer closeLog()
		convey.So(srv.Addr, convey.ShouldEqual, ":5000")

		convey.Convey("When the admin stores a reading", func() {
			req := httptest.NewRequest(http.MethodGet, "/measure?reading=11.4&m=0", http.NoBody)
			req.SetBasicAuth("admin", "adminpw")
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)

			convey.Convey("Then it is created and logged", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
				b, err := os.ReadFile(cfg.AccessLog)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldContainSubstring, "GET /measure")
			})
		})

		convey.Convey("When the viewer reads", func() {
			req := httptest.NewRequest(http.MethodGet, "/readings", http.NoBody)
			req.SetBasicAuth("viewer", "viewpw")
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})
	})

	convey.Convey("Given an invalid allow-list", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.StoreDriver = "memory"
		cfg.AllowedIPs = "10.0.0.0/8, not-an-ip"
		svc, err := app.Open(ctx, cfg, nil)
		convey.So(err, convey.ShouldBeNil)
		defer svc.Close()

		_, _, err = newHTTPServer(cfg, svc, logger.Nop())
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(strings.Contains(err.Error(), "not-an-ip"), convey.ShouldBeTrue)
	})
}

func TestOpenAccessLog(t *testing.T) {
	convey.Convey("Given access log destinations", t, func() {
		w, closeFn, err := openAccessLog("")
		convey.So(err, convey.ShouldBeNil)
		convey.So(w, convey.ShouldBeNil)
		closeFn()

		w, closeFn, err = openAccessLog("-")
		convey.So(err, convey.ShouldBeNil)
		convey.So(w, convey.ShouldEqual, os.Stdout)
		closeFn()

		_, _, err = openAccessLog(filepath.Join(t.TempDir(), "missing", "access.log"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}
