// Package biz implements the business logic of the apiserver: query
// orchestration, retrieval, answer generation, reranking, ingestion and
// answer caching.
package biz
