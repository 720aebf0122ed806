package seeder

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const userAgent = "ShopAssist-Seeder/1.0"

// ScraperConfig controls crawl politeness.
type ScraperConfig struct {
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
}

func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Parallelism: 2,
		Delay:       time.Second,
		Timeout:     30 * time.Second,
	}
}

// Scraper turns product pages into catalog entries.
type Scraper struct {
	config    ScraperConfig
	processor *ContentProcessor
	logger    *logrus.Logger
}

func NewScraper(config ScraperConfig, processor *ContentProcessor, logger *logrus.Logger) *Scraper {
	return &Scraper{config: config, processor: processor, logger: logger}
}

func (s *Scraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.Async(true),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.config.Parallelism,
		Delay:       s.config.Delay,
	})
	c.SetRequestTimeout(s.config.Timeout)
	return c
}

// Scrape visits every URL once. Pages that fail or yield no text are
// reported in the returned errors and skipped.
func (s *Scraper) Scrape(urls []string) ([]Product, []error) {
	var (
		mu       sync.Mutex
		products []Product
		errs     []error
	)

	c := s.newCollector()

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		product, err := s.extractProduct(pageURL, e.DOM)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pageURL, err))
			return
		}
		products = append(products, product)

		s.logger.WithFields(logrus.Fields{
			"url":  pageURL,
			"name": product.Name,
		}).Debug("Product page extracted")
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
	})

	addErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	for _, raw := range urls {
		if _, err := url.ParseRequestURI(raw); err != nil {
			addErr(fmt.Errorf("invalid url %q: %w", raw, err))
			continue
		}
		if err := c.Visit(raw); err != nil {
			addErr(fmt.Errorf("failed to visit %s: %w", raw, err))
		}
	}
	c.Wait()

	return products, errs
}

func (s *Scraper) extractProduct(pageURL string, doc *goquery.Selection) (Product, error) {
	doc.Find("script, style, noscript, nav, header, footer, form").Remove()

	name := firstText(doc,
		`meta[property="og:title"]`,
		"[itemprop=name]",
		"h1",
		"title",
	)
	if name == "" {
		return Product{}, fmt.Errorf("no product name found")
	}

	description := firstText(doc, `meta[name="description"]`, `meta[property="og:description"]`)
	pricing := firstText(doc, `meta[itemprop="price"]`, "[itemprop=price]", ".price", ".pricing")

	body := doc.Find("main, article, [itemprop=description]").First()
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	text := s.processor.CleanContent(blockText(body))
	if description != "" && !strings.Contains(text, description) {
		text = description + "\n\n" + text
	}
	if strings.TrimSpace(text) == "" {
		return Product{}, fmt.Errorf("no content extracted from page")
	}

	return Product{
		ID:          utils.MD5Hash(pageURL)[:12],
		Name:        name,
		Description: text,
		Pricing:     pricing,
		URL:         pageURL,
		Benefits:    listText(doc, ".benefits li, .features li"),
	}, nil
}

// firstText returns the first non-empty match, reading content= on meta tags.
func firstText(doc *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v := strings.Join(strings.Fields(node.Text()), " "); v != "" {
			return v
		}
	}
	return ""
}

func listText(doc *goquery.Selection, selector string) []string {
	var items []string
	doc.Find(selector).Each(func(_ int, li *goquery.Selection) {
		if v := strings.Join(strings.Fields(li.Text()), " "); v != "" {
			items = append(items, v)
		}
	})
	return items
}

// blockText keeps block boundaries as blank lines so chunking can split on
// paragraphs.
func blockText(sel *goquery.Selection) string {
	var parts []string
	blocks := sel.Find("p, li, h2, h3, h4, td")
	if blocks.Length() == 0 {
		return sel.Text()
	}
	blocks.Each(func(_ int, b *goquery.Selection) {
		if v := strings.Join(strings.Fields(b.Text()), " "); v != "" {
			parts = append(parts, v)
		}
	})
	return strings.Join(parts, "\n\n")
}
