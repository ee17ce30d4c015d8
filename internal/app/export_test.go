package service

// WrapCatalog exposes the catalog decorator chain to tests.
var WrapCatalog = wrapCatalog
