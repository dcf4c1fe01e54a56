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
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"note-platform/internal/model/vision"
)

// captionPrompt 图像描述的固定提示词
const captionPrompt = "Describe the image in detail, and extract all the text in the image."

// 送往视觉模型前的最长边上限
const maxImageEdge = 1024

// imageExtensions 识别为图像附件的扩展名
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true,
}

// IsImage 判断路径是否指向图像附件
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// CaptionImage 压缩图像后交给视觉模型生成描述。
// 供应商不支持图像时 client 会给出哨兵描述，这里不做特判。
func CaptionImage(ctx context.Context, client vision.Client, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	compressed, err := compressImage(data)
	if err != nil {
		return "", fmt.Errorf("compress image %s: %w", filepath.Base(path), err)
	}
	encoded := base64.StdEncoding.EncodeToString(compressed)
	return client.Describe(ctx, encoded, "image/jpeg", captionPrompt)
}

// compressImage 等比缩到最长边 1024 以内，铺白底去透明，重编码 JPEG q70
func compressImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	targetW, targetH := width, height
	if width > maxImageEdge || height > maxImageEdge {
		longest := width
		if height > longest {
			longest = height
		}
		scale := float64(maxImageEdge) / float64(longest)
		targetW = int(float64(width) * scale)
		targetH = int(float64(height) * scale)
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
