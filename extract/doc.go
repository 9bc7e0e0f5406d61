// Package extract fetches the text content of web links for ingestion.
package extract
