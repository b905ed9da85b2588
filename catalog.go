package main

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateProject = errors.New("duplicate project id")
	ErrInvalidProject   = errors.New("invalid project")
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// Project is one portfolio catalog entry.
type Project struct {
	ID              string   `yaml:"id" json:"id"`
	Title           string   `yaml:"title" json:"title"`
	Description     string   `yaml:"description" json:"description,omitempty"`
	LongDescription string   `yaml:"long_description" json:"long_description,omitempty"`
	Image           string   `yaml:"image" json:"image"`
	Badges          []string `yaml:"badges" json:"badges"`
	Award           string   `yaml:"award" json:"award,omitempty"`
	Features        []string `yaml:"features" json:"features,omitempty"`
	DemoURL         string   `yaml:"demo_url" json:"demo_url,omitempty"`
	GitHubURL       string   `yaml:"github_url" json:"github_url,omitempty"`
	Year            int      `yaml:"year" json:"year,omitempty"`
	Client          string   `yaml:"client" json:"client,omitempty"`
	Role            string   `yaml:"role" json:"role,omitempty"`
}

// Summary prefers the long description on the detail view.
func (p Project) Summary() string {
	if p.LongDescription != "" {
		return strings.TrimSpace(p.LongDescription)
	}
	return p.Description
}

const (
	cardBadgeLimit = 3
	cardAwardLimit = 15
)

// CardBadges are the badges shown on a project card.
func (p Project) CardBadges() []string {
	if len(p.Badges) <= cardBadgeLimit {
		return p.Badges
	}
	return p.Badges[:cardBadgeLimit]
}

// HiddenBadges counts the badges a card leaves out.
func (p Project) HiddenBadges() int {
	if len(p.Badges) <= cardBadgeLimit {
		return 0
	}
	return len(p.Badges) - cardBadgeLimit
}

// CardAward truncates long award labels for cards.
func (p Project) CardAward() string {
	r := []rune(p.Award)
	if len(r) <= cardAwardLimit {
		return p.Award
	}
	return string(r[:cardAwardLimit]) + "..."
}

func (p Project) validate() error {
	if !projectIDPattern.MatchString(p.ID) {
		return fmt.Errorf("%w: id %q is not url-safe", ErrInvalidProject, p.ID)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: %s has no title", ErrInvalidProject, p.ID)
	}
	if strings.TrimSpace(p.Description) == "" && strings.TrimSpace(p.LongDescription) == "" {
		return fmt.Errorf("%w: %s needs a description or long_description", ErrInvalidProject, p.ID)
	}
	return nil
}

type SocialLink struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Profile struct {
	Name     string       `yaml:"name"`
	Headline string       `yaml:"headline"`
	Email    string       `yaml:"email"`
	About    string       `yaml:"about"`
	Social   []SocialLink `yaml:"social"`
}

// TimelineEntry is a job or an education item.
type TimelineEntry struct {
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Start        string   `yaml:"start"`
	End          string   `yaml:"end"`
	Logo         string   `yaml:"logo"`
	Highlights   []string `yaml:"highlights"`
}

// catalogFile is the on-disk layout of catalog.yaml.
type catalogFile struct {
	Profile    Profile         `yaml:"profile"`
	Experience []TimelineEntry `yaml:"experience"`
	Education  []TimelineEntry `yaml:"education"`
	Skills     []string        `yaml:"skills"`
	Projects   []Project       `yaml:"projects"`
}

// clone copies p so the slice fields no longer share backing arrays.
func (p Project) clone() Project {
	p.Badges = slices.Clone(p.Badges)
	p.Features = slices.Clone(p.Features)
	return p
}

// Catalog is the immutable store of projects plus the profile content shown
// on the home page. It is built once at startup.
type Catalog struct {
	Profile    Profile
	Experience []TimelineEntry
	Education  []TimelineEntry
	Skills     []string

	projects []Project
	byID     map[string]int
}

// NewCatalog checks the entries and indexes them by id, keeping authored order.
func NewCatalog(projects []Project) (*Catalog, error) {
	c := &Catalog{
		projects: make([]Project, 0, len(projects)),
		byID:     make(map[string]int, len(projects)),
	}
	for _, p := range projects {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, ok := c.byID[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProject, p.ID)
		}
		c.byID[p.ID] = len(c.projects)
		c.projects = append(c.projects, p.clone())
	}
	return c, nil
}

// LoadCatalog decodes a catalog YAML document.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c, err := NewCatalog(f.Projects)
	if err != nil {
		return nil, err
	}
	c.Profile = f.Profile
	c.Experience = f.Experience
	c.Education = f.Education
	c.Skills = f.Skills
	return c, nil
}

// All returns every project in authored order. The slice is a copy.
func (c *Catalog) All() []Project {
	out := make([]Project, len(c.projects))
	for i, p := range c.projects {
		out[i] = p.clone()
	}
	return out
}

// Featured returns up to n projects for the home grid.
func (c *Catalog) Featured(n int) []Project {
	all := c.All()
	if n < len(all) {
		return all[:n]
	}
	return all
}

// FindByID does an exact, case-sensitive lookup.
func (c *Catalog) FindByID(id string) (Project, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Project{}, false
	}
	return c.projects[i].clone(), true
}

func (c *Catalog) Len() int { return len(c.projects) }
