// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DocxExtractor 走 zip + word/document.xml 的 WordprocessingML 提取
type DocxExtractor struct{}

// Extract 提取所有段落文本，段落间以换行连接
func (e *DocxExtractor) Extract(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return walkDocumentXML(rc)
	}
	return "", errors.New("docx has no word/document.xml")
}

// walkDocumentXML 遍历 WordprocessingML：w:t 收文本，w:p 结束换段
func walkDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		doc  strings.Builder
		para strings.Builder
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				var text string
				if err := decoder.DecodeElement(&text, &el); err != nil {
					return "", fmt.Errorf("decode text run: %w", err)
				}
				para.WriteString(text)
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				if para.Len() > 0 {
					if doc.Len() > 0 {
						doc.WriteByte('\n')
					}
					doc.WriteString(para.String())
					para.Reset()
				}
			}
		}
	}
	return doc.String(), nil
}
