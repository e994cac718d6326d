// Package web embeds the page templates and stylesheet served by the UI.
package web

import "embed"

// TemplatesFS holds the page templates; layout.html defines the shared blocks.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
