// Package archive compresses an assembled release directory into a single
// distributable file.
//
// Entries are rooted at the package directory name, so extracting
// ink-1.2.3_linux_amd64.tar.gz yields ink-1.2.3_linux_amd64/. Tarball
// compression uses klauspost/compress (gzip), dsnet/compress (bzip2) and
// ulikunitz/xz (xz); zip archives use klauspost/compress/zip.
package archive
