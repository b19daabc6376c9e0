// Package main provides the entry point for prompt-manager, a self hosted gallery
// for AI generated images and the prompts that produced them. Visitors browse and
// upload, administrators approve, edit, tag and back up the collection as a ZIP
// archive. The application is served with fiber and persists through gorm.
package main
