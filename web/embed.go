// Package web embeds the page templates and browser assets.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the map and chart client.
//
//go:embed static/*
var StaticFS embed.FS
