//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/site_focus/internal/daemon"
	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/overlay"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
	"github.com/eliteGoblin/focusd/site_focus/test/fixtures"
)

var _ = Describe("Focus lifecycle", func() {
	var (
		tmpDir string
		host   *fixtures.Host
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "sitefocus-integration-*")
		Expect(err).NotTo(HaveOccurred())

		host, err = fixtures.StartHost(tmpDir, infra.DriverFile)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		if host != nil {
			host.Stop()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("untimed session", func() {
		It("shows the overlay until focus mode is turned off from the popup", func() {
			page, err := host.OpenPage("https://news.example.com/front")
			Expect(err).NotTo(HaveOccurred())
			defer page.Close()

			state, err := host.Client.Start(ctx, usecase.StartOptions{Theme: "Forest"})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Active()).To(BeTrue())
			Expect(state.Session.IsTimed()).To(BeFalse())

			Eventually(page.Surface.Visible).Should(BeTrue())
			view := page.Surface.Last()
			Expect(view.Domain).To(Equal("news.example.com"))
			Expect(view.Theme.Name).To(Equal("Forest"))
			Expect(view.Timed).To(BeFalse())
			Expect(view.Buttons).To(Equal([]string{overlay.TurnOffLabel}))

			state, err = host.Client.Stop(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Active()).To(BeFalse())

			Eventually(page.Surface.Visible).Should(BeFalse())
			Expect(host.Notes.All()).To(BeEmpty())
		})

		It("is turned off from the overlay button", func() {
			page, err := host.OpenPage("https://example.com")
			Expect(err).NotTo(HaveOccurred())
			defer page.Close()

			_, err = host.Client.Start(ctx, usecase.StartOptions{})
			Expect(err).NotTo(HaveOccurred())
			Eventually(page.Surface.Visible).Should(BeTrue())

			Expect(page.Surface.Press(overlay.ActionTurnOff)).To(Succeed())

			Eventually(page.Surface.Visible).Should(BeFalse())
			Eventually(func() (*domain.Session, error) {
				return host.Sessions.Get(ctx, "example.com")
			}).Should(BeNil())
		})
	})

	Describe("timed session", func() {
		It("counts down and is cleaned up when given up", func() {
			page, err := host.OpenPage("https://video.example.org/watch")
			Expect(err).NotTo(HaveOccurred())
			defer page.Close()

			state, err := host.Client.Start(ctx, usecase.StartOptions{Timed: true, Minutes: 15})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Session.IsTimed()).To(BeTrue())

			Eventually(page.Surface.Visible).Should(BeTrue())
			Expect(page.Surface.Last().Timed).To(BeTrue())
			Expect(page.Surface.Last().Countdown()).To(Or(Equal("15:00"), Equal("14:59")))

			alarm, err := host.Alarms.Get(ctx, domain.SessionKey("video.example.org"))
			Expect(err).NotTo(HaveOccurred())
			Expect(alarm).NotTo(BeNil())

			Expect(page.Surface.Press(overlay.ActionGiveUp)).To(Succeed())

			Eventually(page.Surface.Visible).Should(BeFalse())
			Eventually(func() (*domain.Alarm, error) {
				return host.Alarms.Get(ctx, domain.SessionKey("video.example.org"))
			}).Should(BeNil())
			Expect(host.Notes.All()).To(BeEmpty())
		})

		It("ends by itself and raises a completion notification", func() {
			sess := domain.NewTimedSession("short.example.com", "Dark", time.Now(), 300*time.Millisecond)
			Expect(host.Sessions.Put(ctx, sess)).To(Succeed())
			Expect(host.Alarms.Create(ctx, domain.SessionKey("short.example.com"), 300*time.Millisecond)).To(Succeed())

			Eventually(host.Notes.All, 3*time.Second).Should(HaveLen(1))
			note := host.Notes.All()[0]
			Expect(note.Title).To(Equal(daemon.CompletionTitle))
			Expect(note.Message).To(Equal("Great job staying focused on short.example.com!"))

			Expect(host.Sessions.Get(ctx, "short.example.com")).To(BeNil())
		})

		It("removes the overlay when the countdown runs out", func() {
			page, err := host.OpenPage("https://short.example.com")
			Expect(err).NotTo(HaveOccurred())
			defer page.Close()

			sess := domain.NewTimedSession("short.example.com", "Dark", time.Now(), 500*time.Millisecond)
			Expect(host.Sessions.Put(ctx, sess)).To(Succeed())
			Expect(host.Alarms.Create(ctx, domain.SessionKey("short.example.com"), 500*time.Millisecond)).To(Succeed())

			Eventually(page.Surface.Visible).Should(BeTrue())
			Eventually(page.Surface.Visible, 3*time.Second).Should(BeFalse())
			Eventually(func() (*domain.Session, error) {
				return host.Sessions.Get(ctx, "short.example.com")
			}).Should(BeNil())
			Eventually(func() (*domain.Alarm, error) {
				return host.Alarms.Get(ctx, domain.SessionKey("short.example.com"))
			}).Should(BeNil())
		})
	})

	Describe("pages", func() {
		It("only shows the overlay on pages of the focused domain", func() {
			focused, err := host.OpenPage("https://focus.example.com/a")
			Expect(err).NotTo(HaveOccurred())
			defer focused.Close()
			other, err := host.OpenPage("https://other.example.com")
			Expect(err).NotTo(HaveOccurred())
			defer other.Close()

			Expect(focused.Conn.Activate()).To(Succeed())
			Eventually(func() string {
				tab, err := host.Tabs.Active(ctx)
				if err != nil {
					return ""
				}
				return tab.ID
			}).Should(Equal(focused.Conn.Tab().ID))

			_, err = host.Client.Start(ctx, usecase.StartOptions{})
			Expect(err).NotTo(HaveOccurred())

			Eventually(focused.Surface.Visible).Should(BeTrue())
			Consistently(other.Surface.Visible, 300*time.Millisecond).Should(BeFalse())
		})

		It("reports no active tab once every page is closed", func() {
			page, err := host.OpenPage("https://example.com")
			Expect(err).NotTo(HaveOccurred())
			page.Close()

			Eventually(func() error {
				_, err := host.Client.Popup(ctx)
				return err
			}).Should(MatchError(domain.ErrNoActiveTab))
		})
	})

	Describe("host restart", func() {
		restart := func() {
			host.Stop()
			var err error
			host, err = fixtures.StartHost(tmpDir, infra.DriverFile)
			Expect(err).NotTo(HaveOccurred())
		}

		It("keeps untimed sessions and sweeps expired timed ones", func() {
			Expect(host.Sessions.Put(ctx, domain.NewSession("kept.example.com", "Ocean"))).To(Succeed())
			Expect(host.Sessions.Put(ctx, domain.NewTimedSession("expired.example.com", "",
				time.Now().Add(-time.Hour), 25*time.Minute))).To(Succeed())
			Expect(host.Sessions.Put(ctx, domain.NewTimedSession("running.example.com", "",
				time.Now(), 25*time.Minute))).To(Succeed())

			restart()

			Expect(host.Sessions.Get(ctx, "kept.example.com")).NotTo(BeNil())
			Expect(host.Sessions.Get(ctx, "expired.example.com")).To(BeNil())
			Expect(host.Sessions.Get(ctx, "running.example.com")).NotTo(BeNil())

			alarm, err := host.Alarms.Get(ctx, domain.SessionKey("running.example.com"))
			Expect(err).NotTo(HaveOccurred())
			Expect(alarm).NotTo(BeNil())
			Expect(host.Notes.All()).To(BeEmpty())
		})

		It("shows the overlay of a restored session on a new page", func() {
			Expect(host.Sessions.Put(ctx, domain.NewSession("kept.example.com", "Sunset"))).To(Succeed())
			restart()

			page, err := host.OpenPage("https://kept.example.com/inbox")
			Expect(err).NotTo(HaveOccurred())
			defer page.Close()

			Eventually(page.Surface.Visible).Should(BeTrue())
			Expect(page.Surface.Last().Theme.Name).To(Equal("Sunset"))
		})
	})
})
