package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const homeProjectCount = 6

func (s *Server) home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"profile":  s.catalog.Profile,
		"skills":   s.catalog.Skills,
		"projects": s.catalog.Featured(homeProjectCount),
	})
}

func (s *Server) workContent(c *gin.Context) {
	c.HTML(http.StatusOK, "timeline.html", gin.H{
		"heading": "Work Experience",
		"entries": s.catalog.Experience,
	})
}

func (s *Server) educationContent(c *gin.Context) {
	c.HTML(http.StatusOK, "timeline.html", gin.H{
		"heading": "Education",
		"entries": s.catalog.Education,
	})
}

// projectDetail renders a project or sends the visitor back to the project
// grid when the id is unknown.
func (s *Server) projectDetail(c *gin.Context) {
	res := s.resolver.Resolve(c.Param("id"))
	if !res.Found {
		c.Redirect(http.StatusFound, "/#projects")
		return
	}

	s.reporter.Report(c.Request.Context(), Event{
		Action:   "view_project_page",
		Category: "portfolio",
		Label:    res.Project.Title,
	})
	c.HTML(http.StatusOK, "project.html", gin.H{
		"profile": s.catalog.Profile,
		"project": res.Project,
	})
}

func (s *Server) listProjects(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.All())
}

func (s *Server) getProject(c *gin.Context) {
	res := s.resolver.Resolve(c.Param("id"))
	if !res.Found {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, res.Project)
}

func (s *Server) trackEvent(c *gin.Context) {
	var e Event
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	s.reporter.Report(c.Request.Context(), e)
	c.Status(http.StatusAccepted)
}

func (s *Server) sessionFor(c *gin.Context) *ContactPipeline {
	cookie, _ := c.Cookie(contactSessionCookie)
	id, pipeline := s.sessions.Get(cookie)
	if id != cookie {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(contactSessionCookie, id, int(contactSessionTTL.Seconds()), "/", "", false, true)
	}
	return pipeline
}

// HTMX contact form fragment, prefilled with whatever the session still holds.
func (s *Server) contactForm(c *gin.Context) {
	pipeline := s.sessionFor(c)
	c.HTML(http.StatusOK, "contact.html", gin.H{
		"title":  "Contact Me",
		"form":   pipeline.Fields(),
		"errors": ValidationResult{},
	})
}

func (s *Server) submitContact(c *gin.Context) {
	var form ContactSubmission
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "contact-error.html", gin.H{
			"error": "Sorry, that form could not be read. Please try again.",
		})
		return
	}

	pipeline := s.sessionFor(c)
	// Fill is refused while a send is running; Submit then reports busy.
	pipeline.Fill(form)

	// The attempt finishes even if the visitor leaves; only the page is lost.
	out := pipeline.Submit(context.WithoutCancel(c.Request.Context()))

	switch out.Kind {
	case OutcomeBusy:
		c.HTML(http.StatusOK, "contact-busy.html", nil)
	case OutcomeValidationFailed:
		c.HTML(http.StatusOK, "contact.html", gin.H{
			"title":  "Contact Me",
			"form":   pipeline.Fields(),
			"errors": out.Errors,
		})
	case OutcomeTransportFailed:
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error":    "Sorry, there was an error sending your message. Please try again later or email me directly.",
			"email":    s.catalog.Profile.Email,
			"fallback": MailtoLink(s.catalog.Profile.Email, pipeline.Fields()),
		})
	case OutcomeSuccess:
		if out.ComposeURL != "" {
			c.HTML(http.StatusOK, "contact-compose.html", gin.H{
				"success":    "Form completed. Please use the email link to send your message.",
				"composeURL": out.ComposeURL,
			})
			return
		}
		c.HTML(http.StatusOK, "contact-success.html", gin.H{
			"success": "Thank you for your message! I'll get back to you soon.",
		})
	}
}
