// Package twitter wraps the twitter-scraper library behind the collector's
// Source interface. It owns request pacing, raw record mapping and the
// translation of library failures into the pipeline's error taxonomy.
package twitter
